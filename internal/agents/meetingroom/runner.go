// ABOUTME: Deterministic meeting room runner: maps message intents onto booking tools
// ABOUTME: Every tool call goes through the turn's guard; results feed back as raw events

package meetingroom

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/2389/crew-gateway/internal/agent"
	"github.com/2389/crew-gateway/internal/event"
	"github.com/2389/crew-gateway/internal/guard"
)

// GatedTools are the tools that require a verified caller; the remaining
// tools are open to guests.
var GatedTools = []string{"book_room", "get_my_bookings", "cancel_booking"}

var (
	roomPattern  = regexp.MustCompile(`(?i)\b([A-C]-\d{3})\b`)
	datePattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	slotPattern  = regexp.MustCompile(`\b(\d{2}:\d{2}-\d{2}:\d{2})\b`)
	bkPattern    = regexp.MustCompile(`(?i)\b(BK\d+)\b`)
	countPattern = regexp.MustCompile(`(\d+)\s*人`)
	bldgPattern  = regexp.MustCompile(`(?i)\b([A-C])\b`)
)

// buildingFrom pulls a building id out of a message, accepting both the
// "A棟" form and a standalone letter.
func buildingFrom(msg string) string {
	upper := strings.ToUpper(msg)
	for _, id := range []string{"A", "B", "C"} {
		if strings.Contains(upper, id+"棟") {
			return id
		}
	}
	if m := bldgPattern.FindStringSubmatch(msg); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// Runner interprets chat messages against the booking service. It is rule
// driven rather than model driven: the language-model backend is an
// external collaborator, and this runner stands in for it with the same
// event contract.
type Runner struct {
	svc    *Service
	logger *slog.Logger
}

// NewRunner creates a runner over the given booking service.
func NewRunner(svc *Service, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{svc: svc, logger: logger.With("component", "meetingroom")}
}

// Run executes one turn, emitting raw events for each tool interaction and
// a final text response. Producer shapes are intentionally varied: calls
// surface as a top-level call list, results as nested content fragments.
func (r *Runner) Run(ctx context.Context, turn *agent.Turn) (<-chan agent.TurnEvent, error) {
	ch := make(chan agent.TurnEvent)
	go func() {
		defer close(ch)
		r.execute(ctx, turn, ch)
	}()
	return ch, nil
}

func (r *Runner) execute(ctx context.Context, turn *agent.Turn, ch chan<- agent.TurnEvent) {
	msg := turn.Message

	switch {
	case containsAny(msg, "大樓", "building"):
		result := r.invoke(ctx, turn, ch, "list_buildings", map[string]any{}, func(args map[string]any) map[string]any {
			return r.svc.ListBuildings()
		})
		r.reply(ctx, ch, resultMessage(result))

	case containsAny(msg, "我的預約", "my bookings"):
		result := r.invoke(ctx, turn, ch, "get_my_bookings", map[string]any{}, func(args map[string]any) map[string]any {
			return r.svc.MyBookings(stringArg(args, "user_id"))
		})
		r.reply(ctx, ch, resultMessage(result))

	case containsAny(msg, "取消", "cancel"):
		args := map[string]any{}
		if m := bkPattern.FindString(msg); m != "" {
			args["booking_id"] = strings.ToUpper(m)
		}
		result := r.invoke(ctx, turn, ch, "cancel_booking", args, func(args map[string]any) map[string]any {
			return r.svc.CancelBooking(stringArg(args, "booking_id"), stringArg(args, "user_id"))
		})
		r.reply(ctx, ch, resultMessage(result))

	case containsAny(msg, "預約", "book") && roomPattern.MatchString(msg):
		args := map[string]any{
			"room_id":   strings.ToUpper(roomPattern.FindString(msg)),
			"date":      datePattern.FindString(msg),
			"time_slot": slotPattern.FindString(msg),
			"title":     "會議",
		}
		if m := countPattern.FindStringSubmatch(msg); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				args["attendees"] = n
			}
		}
		result := r.invoke(ctx, turn, ch, "book_room", args, func(args map[string]any) map[string]any {
			attendees, _ := args["attendees"].(int)
			return r.svc.BookRoom(
				stringArg(args, "room_id"), stringArg(args, "user_id"),
				stringArg(args, "date"), stringArg(args, "time_slot"),
				stringArg(args, "title"), attendees)
		})
		// Remember the last booking so a follow-up turn can cancel it.
		if result["status"] == "success" {
			if booking, ok := result["booking"].(map[string]any); ok {
				turn.State["last_booking_id"] = booking["booking_id"]
			}
		}
		r.reply(ctx, ch, resultMessage(result))

	case containsAny(msg, "會議室", "rooms"):
		args := map[string]any{
			"building_id": buildingFrom(msg),
			"date":        datePattern.FindString(msg),
		}
		result := r.invoke(ctx, turn, ch, "list_available_rooms", args, func(args map[string]any) map[string]any {
			return r.svc.ListAvailableRooms(stringArg(args, "building_id"), stringArg(args, "date"))
		})
		r.reply(ctx, ch, resultMessage(result))

	case containsAny(msg, "我是誰", "who am i"):
		result := r.invoke(ctx, turn, ch, "get_current_user", map[string]any{}, func(args map[string]any) map[string]any {
			return currentUser(turn.State)
		})
		r.reply(ctx, ch, resultMessage(result))

	default:
		name, _ := turn.State["user_name"].(string)
		r.reply(ctx, ch,
			fmt.Sprintf("%s您好！我是會議室預約助理，", name),
			"可以幫您查詢大樓、查詢會議室、預約或取消會議室。")
	}
}

// invoke runs one tool through the guard. A blocked call never reaches the
// tool; the structured blocked payload takes the place of its result so the
// conversation can react to it.
func (r *Runner) invoke(ctx context.Context, turn *agent.Turn, ch chan<- agent.TurnEvent,
	name string, args map[string]any, tool func(map[string]any) map[string]any) map[string]any {

	decision := turn.Guard.Check(name, args, turn.State)

	callArgs := args
	if decision.Allowed {
		callArgs = decision.Args
	}
	r.emit(ctx, ch, &event.Raw{FunctionCalls: []event.Call{{Name: name, Args: callArgs}}})

	var result map[string]any
	if !decision.Allowed {
		r.logger.Warn("tool call blocked", "tool", name)
		result = guard.BlockedResult(decision.Reason)
	} else {
		result = tool(decision.Args)
	}

	r.emit(ctx, ch, &event.Raw{Content: &event.Content{Parts: []event.Part{
		{FunctionResponse: &event.Result{Name: name, Response: result}},
	}}})
	return result
}

// reply emits the response text as separate fragments, the way a streaming
// backend would.
func (r *Runner) reply(ctx context.Context, ch chan<- agent.TurnEvent, fragments ...string) {
	parts := make([]event.Part, 0, len(fragments))
	for _, f := range fragments {
		if f != "" {
			parts = append(parts, event.Part{Text: f})
		}
	}
	if len(parts) == 0 {
		return
	}
	r.emit(ctx, ch, &event.Raw{Content: &event.Content{Parts: parts}})
}

func (r *Runner) emit(ctx context.Context, ch chan<- agent.TurnEvent, raw *event.Raw) {
	select {
	case ch <- agent.TurnEvent{Raw: raw}:
	case <-ctx.Done():
	}
}

// currentUser mirrors the get_current_user tool: it reads identity straight
// from session state rather than taking arguments.
func currentUser(state map[string]any) map[string]any {
	if registered, _ := state["is_registered"].(bool); !registered {
		return map[string]any{
			"status":  "error",
			"message": "無法取得使用者資料，請聯繫系統管理員。",
		}
	}
	return map[string]any{
		"status": "success",
		"user_info": map[string]any{
			"user_id":    state["user_id"],
			"user_name":  state["user_name"],
			"department": state["department"],
			"email":      state["email"],
		},
	}
}

func resultMessage(result map[string]any) string {
	if msg, ok := result["message"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := result["error_message"].(string); ok && msg != "" {
		return msg
	}
	if info, ok := result["user_info"].(map[string]any); ok {
		return fmt.Sprintf("您是 %v（%v），%v。", info["user_name"], info["user_id"], info["department"])
	}
	return ""
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func containsAny(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
