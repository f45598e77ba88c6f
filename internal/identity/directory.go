// ABOUTME: Directory-backed identity resolver with the standard employee seed data
// ABOUTME: Stands in for the enterprise directory; lookup failure means absence, never an error to surface

package identity

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Resolver looks up verified identity by raw user id. A nil identity with a
// nil error means the directory has no record; callers must treat absence
// and failure identically and fall back to a guest identity.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*Identity, error)
}

// Directory is a static in-memory resolver. Real deployments replace it
// with an enterprise directory client behind the same interface.
type Directory struct {
	users   map[string]*Identity
	latency time.Duration
	logger  *slog.Logger
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithLatency makes each lookup take at least d, approximating a remote
// directory call. Lookups still honor context cancellation.
func WithLatency(d time.Duration) DirectoryOption {
	return func(dir *Directory) { dir.latency = d }
}

// NewDirectory builds a resolver over the given identities, keyed by
// upper-cased user id.
func NewDirectory(users []*Identity, logger *slog.Logger, opts ...DirectoryOption) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	dir := &Directory{
		users:  make(map[string]*Identity, len(users)),
		logger: logger.With("component", "identity"),
	}
	for _, u := range users {
		dir.users[strings.ToUpper(u.UserID)] = u
	}
	for _, opt := range opts {
		opt(dir)
	}
	return dir
}

// Resolve returns the identity for userID, or (nil, nil) when absent.
// Lookup is case-insensitive on the id.
func (d *Directory) Resolve(ctx context.Context, userID string) (*Identity, error) {
	if d.latency > 0 {
		timer := time.NewTimer(d.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	id, ok := d.users[strings.ToUpper(userID)]
	if !ok {
		d.logger.Debug("user not in directory", "user_id", userID)
		return nil, nil
	}
	return id, nil
}

// DefaultUsers returns the built-in employee records used when the config
// supplies no directory seed.
func DefaultUsers() []*Identity {
	return []*Identity{
		{UserID: "EMP001", Name: "王小明", Department: "資訊部", Email: "wang.xiaoming@company.com", JobTitle: "軟體工程師", Phone: "0912-345-678"},
		{UserID: "EMP002", Name: "李小華", Department: "人資部", Email: "li.xiaohua@company.com", JobTitle: "人資專員", Phone: "0923-456-789"},
		{UserID: "EMP003", Name: "張大偉", Department: "業務部", Email: "zhang.dawei@company.com", JobTitle: "業務經理", Phone: "0934-567-890"},
		{UserID: "EMP004", Name: "陳美玲", Department: "財務部", Email: "chen.meiling@company.com", JobTitle: "財務主管", Phone: "0945-678-901"},
		{UserID: "EMP005", Name: "林志豪", Department: "研發部", Email: "lin.zhihao@company.com", JobTitle: "技術總監", Phone: "0956-789-012"},
	}
}
