package browser

import (
	"context"
	"fmt"
	"time"
)

// ConditionKind enumerates the page conditions WaitUntil can poll for.
type ConditionKind int

const (
	CondPresent ConditionKind = iota
	CondVisible
	CondInvisible
	CondClickable
	CondTextPresent
)

func (k ConditionKind) String() string {
	switch k {
	case CondPresent:
		return "present"
	case CondVisible:
		return "visible"
	case CondInvisible:
		return "invisible"
	case CondClickable:
		return "clickable"
	case CondTextPresent:
		return "text present"
	}
	return fmt.Sprintf("condition(%d)", int(k))
}

// Condition is a predicate over the elements matched by Locator.
type Condition struct {
	Kind    ConditionKind
	Locator Locator
	Text    string // CondTextPresent only
}

func Present(loc Locator) Condition   { return Condition{Kind: CondPresent, Locator: loc} }
func Visible(loc Locator) Condition   { return Condition{Kind: CondVisible, Locator: loc} }
func Invisible(loc Locator) Condition { return Condition{Kind: CondInvisible, Locator: loc} }
func Clickable(loc Locator) Condition { return Condition{Kind: CondClickable, Locator: loc} }

// TextPresent holds when an element matched by loc contains text.
func TextPresent(loc Locator, text string) Condition {
	return Condition{Kind: CondTextPresent, Locator: loc, Text: text}
}

func (c Condition) String() string {
	if c.Kind == CondTextPresent {
		return fmt.Sprintf("%s %q in %s", c.Kind, c.Text, c.Locator)
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Locator)
}

// TimeoutError reports a condition that never became true.
type TimeoutError struct {
	Condition Condition
	Elapsed   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("browser: timeout after %s waiting for %s", e.Elapsed.Round(time.Millisecond), e.Condition)
}

// Locator returns the locator of the condition that timed out.
func (e *TimeoutError) Locator() Locator { return e.Condition.Locator }

// poll evaluates check every interval until it reports true, the timeout
// elapses or ctx is done. Check errors are treated as "not yet": a page in
// the middle of a transition routinely detaches nodes under us.
func poll(ctx context.Context, cond Condition, timeout, interval time.Duration, check func() (bool, error)) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	start := time.Now()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ok, err := check(); err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			// One last look so a condition met right at the deadline still counts.
			if ok, err := check(); err == nil && ok {
				return nil
			}
			return &TimeoutError{Condition: cond, Elapsed: time.Since(start)}
		case <-ticker.C:
		}
	}
}
