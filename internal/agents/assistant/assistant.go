// ABOUTME: General assistant runner with weather and time lookup tools
// ABOUTME: Demonstrates an agent whose tools are all gated behind the guard

package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/crew-gateway/internal/agent"
	"github.com/2389/crew-gateway/internal/event"
	"github.com/2389/crew-gateway/internal/guard"
)

var weatherReports = map[string]string{
	"taipei":   "台北目前天氣晴朗，氣溫 28 度（攝氏），濕度 65%。",
	"new york": "紐約目前天氣晴朗，氣溫 25 度（攝氏），濕度 55%。",
	"tokyo":    "東京目前多雲，氣溫 22 度（攝氏），濕度 70%。",
}

var timezones = map[string]string{
	"taipei":   "Asia/Taipei",
	"new york": "America/New_York",
	"tokyo":    "Asia/Tokyo",
	"london":   "Europe/London",
	"paris":    "Europe/Paris",
}

// cityAliases maps message keywords to the canonical city keys above.
var cityAliases = map[string]string{
	"台北": "taipei", "taipei": "taipei",
	"紐約": "new york", "new york": "new york",
	"東京": "tokyo", "tokyo": "tokyo",
	"倫敦": "london", "london": "london",
	"巴黎": "paris", "paris": "paris",
}

// Runner answers weather and time questions with canned tool data.
type Runner struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner creates the assistant runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger.With("component", "assistant"), now: time.Now}
}

// Run executes one turn. Tool calls surface through the action-wrapper
// shape and results through the top-level result list, exercising a
// different pair of producer shapes than the meeting room agent.
func (r *Runner) Run(ctx context.Context, turn *agent.Turn) (<-chan agent.TurnEvent, error) {
	ch := make(chan agent.TurnEvent)
	go func() {
		defer close(ch)
		r.execute(ctx, turn, ch)
	}()
	return ch, nil
}

func (r *Runner) execute(ctx context.Context, turn *agent.Turn, ch chan<- agent.TurnEvent) {
	msg := strings.ToLower(turn.Message)
	city := cityFrom(msg)

	switch {
	case strings.Contains(msg, "天氣") || strings.Contains(msg, "weather"):
		result := r.invoke(ctx, turn, ch, "get_weather", map[string]any{"city": city}, r.weather)
		r.reply(ctx, ch, reportOf(result))

	case strings.Contains(msg, "時間") || strings.Contains(msg, "time"):
		result := r.invoke(ctx, turn, ch, "get_current_time", map[string]any{"city": city}, r.currentTime)
		r.reply(ctx, ch, reportOf(result))

	default:
		name, _ := turn.State["user_name"].(string)
		r.reply(ctx, ch, fmt.Sprintf("%s您好！我可以幫您查詢城市的天氣和時間。", name))
	}
}

func (r *Runner) weather(args map[string]any) map[string]any {
	city, _ := args["city"].(string)
	report, ok := weatherReports[city]
	if !ok {
		return map[string]any{
			"status":        "error",
			"error_message": fmt.Sprintf("抱歉，目前沒有 '%s' 的天氣資訊。", city),
		}
	}
	return map[string]any{"status": "success", "report": report}
}

func (r *Runner) currentTime(args map[string]any) map[string]any {
	city, _ := args["city"].(string)
	tzName, ok := timezones[city]
	if !ok {
		return map[string]any{
			"status":        "error",
			"error_message": fmt.Sprintf("抱歉，目前沒有 '%s' 的時區資訊。", city),
		}
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return map[string]any{
			"status":        "error",
			"error_message": fmt.Sprintf("無法載入 '%s' 的時區資料。", city),
		}
	}
	now := r.now().In(loc)
	return map[string]any{
		"status": "success",
		"report": fmt.Sprintf("%s 目前的時間是 %s", city, now.Format("2006-01-02 15:04:05 MST")),
	}
}

func (r *Runner) invoke(ctx context.Context, turn *agent.Turn, ch chan<- agent.TurnEvent,
	name string, args map[string]any, tool func(map[string]any) map[string]any) map[string]any {

	decision := turn.Guard.Check(name, args, turn.State)

	callArgs := args
	if decision.Allowed {
		callArgs = decision.Args
	}
	r.emit(ctx, ch, &event.Raw{Actions: &event.Actions{
		ToolCalls: []event.Call{{Name: name, Args: callArgs}},
	}})

	var result map[string]any
	if !decision.Allowed {
		r.logger.Warn("tool call blocked", "tool", name)
		result = guard.BlockedResult(decision.Reason)
	} else {
		result = tool(decision.Args)
	}

	r.emit(ctx, ch, &event.Raw{FunctionResponses: []event.Result{
		{Name: name, Response: result},
	}})
	return result
}

func (r *Runner) reply(ctx context.Context, ch chan<- agent.TurnEvent, text string) {
	if text == "" {
		return
	}
	r.emit(ctx, ch, &event.Raw{Content: &event.Content{Parts: []event.Part{{Text: text}}}})
}

func (r *Runner) emit(ctx context.Context, ch chan<- agent.TurnEvent, raw *event.Raw) {
	select {
	case ch <- agent.TurnEvent{Raw: raw}:
	case <-ctx.Done():
	}
}

func cityFrom(msg string) string {
	for alias, city := range cityAliases {
		if strings.Contains(msg, alias) {
			return city
		}
	}
	return "taipei"
}

func reportOf(result map[string]any) string {
	if report, ok := result["report"].(string); ok {
		return report
	}
	if msg, ok := result["error_message"].(string); ok {
		return msg
	}
	return ""
}
