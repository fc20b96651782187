package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/config"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/model"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/service"
)

// RateStore is the slice of the credential store the limiter needs:
// reading a user's rate state and writing it back conditionally.
// *repository.UserRepo satisfies it.
type RateStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	CompareAndSwapRateState(ctx context.Context, id string, observed, next model.RateState) (bool, error)
	ForceRateState(ctx context.Context, id string, next model.RateState) error
}

type rateOutcome int

const (
	rateAllow          rateOutcome = iota // pass, state updated per Next
	rateAllowWithReset                    // pass, budget restored to full
	rateReject                            // 408, retry after the window
)

// rateDecision is the output of the decision table: what to answer the
// client and what state to persist. Persist is false for the one branch
// that rejects without touching state (budget exhausted inside a live
// window).
type rateDecision struct {
	Outcome rateOutcome
	Next    model.RateState
	Persist bool
}

// decide is the two-phase gate evaluated on every authenticated request.
// It is deliberately not a token bucket: exhausting the budget inside the
// window forces a wait until the window boundary, and crossing the
// boundary grants either a single grace pass (after a recorded rejection,
// the -1 sentinel) or a fresh full budget. A request inside the window
// with budget to spare restarts the window at full budget rather than
// merely decrementing.
//
// The expired-window arm where hits remained and were not zero decrements
// without restarting the window; that branch is kept exactly as observed
// in production behavior.
func decide(now time.Time, st model.RateState, cfg config.RateLimitConfig, defaultHits int) rateDecision {
	window := cfg.WindowMillis
	if st.WindowMillis != nil {
		window = *st.WindowMillis
	}
	remaining := cfg.FallbackHits
	if st.RemainingHits != nil {
		remaining = *st.RemainingHits
	}
	elapsed := window + 1 // an unmetered user is past any window
	if st.LastHitAt != nil {
		elapsed = now.UnixMilli() - st.LastHitAt.UnixMilli()
	}

	if elapsed > window {
		if st.LastHitAt == nil || remaining < 1 {
			switch remaining {
			case 0:
				// Exhausted and the window just elapsed: record the
				// rejection and arm the one-time grace pass.
				next := st
				next.RemainingHits = intp(-1)
				next.LastHitAt = timep(now)
				return rateDecision{Outcome: rateReject, Next: next, Persist: true}
			case -1:
				// The grace pass after a recorded rejection: fresh budget.
				next := st
				next.RemainingHits = intp(defaultHits)
				next.LastHitAt = timep(now)
				return rateDecision{Outcome: rateAllowWithReset, Next: next, Persist: true}
			default:
				// First metered request: stamp the defaults onto the row.
				next := st
				next.RemainingHits = intp(defaultHits)
				next.WindowMillis = &window
				next.LastHitAt = timep(now)
				return rateDecision{Outcome: rateAllow, Next: next, Persist: true}
			}
		}
		// Window expired with hits left: spend one without restarting the
		// window.
		next := st
		next.RemainingHits = intp(remaining - 1)
		return rateDecision{Outcome: rateAllow, Next: next, Persist: true}
	}

	if remaining > 1 {
		// Activity inside the window with budget to spare restarts the
		// window at full budget.
		next := st
		next.RemainingHits = intp(defaultHits)
		next.LastHitAt = timep(now)
		return rateDecision{Outcome: rateAllowWithReset, Next: next, Persist: true}
	}
	return rateDecision{Outcome: rateReject, Next: st, Persist: false}
}

// NewUserRateLimiter returns the per-user request gate. It runs after
// access authentication and before the permission guard. State lives on
// the user row; writes go through a conditional update so two concurrent
// requests cannot silently lose one another's accounting, with a bounded
// retry and a final unconditional write so a hot user cannot starve.
func NewUserRateLimiter(cfg config.RateLimitConfig, store RateStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := UserID(c)
			if uid == "" {
				return next(c)
			}
			ctx := c.Request().Context()

			var d rateDecision
			var window int64
			for attempt := 0; ; attempt++ {
				u, err := store.GetByID(ctx, uid)
				if err != nil {
					return c.JSON(http.StatusInternalServerError, echo.Map{
						"statusCode": http.StatusInternalServerError, "message": "rate limit lookup failed"})
				}
				st := model.StateOf(u)
				defaultHits := cfg.DefaultHits
				if u.DefaultHits != nil {
					defaultHits = *u.DefaultHits
				}
				window = cfg.WindowMillis
				if u.WindowMillis != nil {
					window = *u.WindowMillis
				}

				d = decide(time.Now().UTC(), st, cfg, defaultHits)
				if cfg.Debug {
					c.Logger().Debugf("[ratelimit] user=%s remaining=%v window=%dms outcome=%d persist=%t",
						uid, u.RemainingHits, window, d.Outcome, d.Persist)
				}
				if !d.Persist {
					break
				}
				if attempt >= 2 {
					// Two lost races in a row: write the final decision
					// unconditionally rather than starve the request.
					if err := store.ForceRateState(ctx, uid, d.Next); err != nil {
						return c.JSON(http.StatusInternalServerError, echo.Map{
							"statusCode": http.StatusInternalServerError, "message": "rate limit update failed"})
					}
					break
				}
				ok, err := store.CompareAndSwapRateState(ctx, uid, st, d.Next)
				if err != nil {
					return c.JSON(http.StatusInternalServerError, echo.Map{
						"statusCode": http.StatusInternalServerError, "message": "rate limit update failed"})
				}
				if ok {
					break
				}
				// Conflict: another request moved the state; re-read and
				// re-decide.
			}

			if d.Outcome == rateReject {
				rejected := service.RateLimited(formatWindow(window))
				return c.JSON(rejected.Status, echo.Map{
					"statusCode": rejected.Status, "error": rejected.Code, "message": rejected.Message})
			}
			return next(c)
		}
	}
}

// formatWindow renders a millisecond window as hh:mm:ss for the retry
// message, e.g. 90061000 -> "01h:01m:01s".
func formatWindow(ms int64) string {
	seconds := ms / 1000
	minutes := seconds / 60
	hours := (minutes / 60) % 24
	seconds = seconds % 60
	minutes = minutes % 60
	return fmt.Sprintf("%02dh:%02dm:%02ds", hours, minutes, seconds)
}

func intp(v int) *int { return &v }

func timep(t time.Time) *time.Time { return &t }
