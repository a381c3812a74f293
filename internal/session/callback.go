package session

import (
	"context"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/services"
	"github.com/desertthunder/rhythmiq/internal/shared"
)

// State of a [CallbackController].
type State int

const (
	Idle State = iota
	Processing
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Destination is where the user is sent once the callback settles.
type Destination string

const (
	DestinationLogin     Destination = "/login"
	DestinationDashboard Destination = "/dashboard"
)

// AuthHandler completes authorization with a code received on the redirect.
type AuthHandler interface {
	HandleAuthSuccess(ctx context.Context, code string) error
}

// Navigator performs the single navigation of a callback.
type Navigator func(Destination)

// CallbackOpts configures a [CallbackController].
type CallbackOpts struct {
	// ExpectedState, when set, must equal the redirect's state parameter.
	ExpectedState string
	Logger        *log.Logger
}

// CallbackController handles one provider redirect.
//
// Transitions are checked-and-set under a mutex: once Processing or Navigated, further
// invocations are no-ops, so a code is exchanged at most once and navigation happens exactly once.
type CallbackController struct {
	auth          AuthHandler
	navigate      Navigator
	expectedState string
	logger        *log.Logger

	mu        sync.Mutex
	state     State
	navigated bool
	err       *services.AuthError
}

// NewCallbackController creates a controller in the [Idle] state.
func NewCallbackController(auth AuthHandler, navigate Navigator, opts CallbackOpts) *CallbackController {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &CallbackController{
		auth:          auth,
		navigate:      navigate,
		expectedState: opts.ExpectedState,
		logger:        logger,
	}
}

// Handle processes the redirect query. It returns once the invocation has settled or been ignored.
func (c *CallbackController) Handle(ctx context.Context, query url.Values) {
	c.mu.Lock()
	if c.state == Processing || c.navigated {
		c.mu.Unlock()
		c.logger.Debug("callback ignored", "state", c.State())
		return
	}

	if providerErr := query.Get("error"); providerErr != "" {
		c.settleLocked(&services.AuthError{Kind: services.ProviderDeniedAuth, Err: &ProviderError{Code: providerErr}})
		return
	}

	if c.expectedState != "" && query.Get("state") != c.expectedState {
		c.settleLocked(&services.AuthError{Kind: services.ProviderDeniedAuth, Err: shared.ErrStateMismatch})
		return
	}

	code := query.Get("code")
	if code == "" {
		c.settleLocked(&services.AuthError{Kind: services.NoAuthorizationCode})
		return
	}

	c.state = Processing
	c.mu.Unlock()

	err := c.auth.HandleAuthSuccess(ctx, code)

	c.mu.Lock()
	if c.navigated {
		c.mu.Unlock()
		c.logger.Debug("dropping superseded callback result", "error", err)
		return
	}

	if err != nil {
		authErr, ok := services.AsAuthError(err)
		if !ok {
			authErr = &services.AuthError{Kind: services.ExchangeFailed, Err: err}
		}
		c.settleLocked(authErr)
		return
	}
	c.settleLocked(nil)
}

// settleLocked records the terminal state, marks the controller navigated and navigates after unlocking.
func (c *CallbackController) settleLocked(err *services.AuthError) {
	dest := DestinationDashboard
	c.state = Succeeded
	if err != nil {
		dest = DestinationLogin
		c.state = Failed
		c.err = err
	}
	c.navigated = true
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("authorization failed", "error", err)
	} else {
		c.logger.Info("authorization succeeded")
	}

	if c.navigate != nil {
		c.navigate(dest)
	}
}

// Abandon marks the controller navigated without navigating, so pending and future invocations are dropped.
func (c *CallbackController) Abandon() {
	c.mu.Lock()
	c.navigated = true
	c.mu.Unlock()
}

func (c *CallbackController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *CallbackController) Navigated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navigated
}

// Err returns the failure recorded by a [Failed] controller.
func (c *CallbackController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return nil
	}
	return c.err
}

// ProviderError is the error parameter returned by the provider on the redirect.
type ProviderError struct {
	Code string
}

func (e *ProviderError) Error() string { return "provider returned " + e.Code }
