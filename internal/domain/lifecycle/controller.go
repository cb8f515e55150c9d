package lifecycle

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"family-ledger-go/internal/cache"
	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/gateway"
	"family-ledger-go/pkg/logger"
	"github.com/google/uuid"
)

type Gateway interface {
	Upload(ctx context.Context, filename, contentType string, content io.Reader) (*ledger.Attachment, error)
	GetPersonalExpense(ctx context.Context, id string) (*ledger.PersonalExpenseRequest, error)
	CreatePersonalExpense(ctx context.Context, input ledger.CreatePersonalExpenseInput) (*ledger.PersonalExpenseRequest, error)
	UpdatePersonalExpense(ctx context.Context, id string, patch ledger.PersonalExpensePatch) (*ledger.PersonalExpenseRequest, error)
	SubmitPersonalExpense(ctx context.Context, id string) (*ledger.PersonalExpenseRequest, error)
	CancelPersonalExpense(ctx context.Context, id string) (*ledger.PersonalExpenseRequest, error)
	DecidePersonalExpense(ctx context.Context, id string, decision ledger.DecisionPayload) (*ledger.PersonalExpenseRequest, error)
}

type Cache interface {
	Reconcile(item ledger.PersonalExpenseRequest)
	RefreshMine(ctx context.Context) error
	RefreshPending(ctx context.Context) error
	RefreshApproved(ctx context.Context) error
	LoadApprovals(ctx context.Context, mount *cache.Mount, id string) ([]ledger.ApprovalRecord, error)
}

// Publisher matches the broker client; a nil Publisher disables events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Controller drives personal expense requests through their lifecycle. It
// never changes a request locally: every transition is a gateway round trip
// whose response is reconciled into the cache.
type Controller struct {
	gateway   Gateway
	cache     Cache
	publisher Publisher
	log       logger.Logger
	now       func() time.Time
}

func NewController(gateway Gateway, cache Cache, publisher Publisher, log logger.Logger) *Controller {
	return &Controller{
		gateway:   gateway,
		cache:     cache,
		publisher: publisher,
		log:       logger.OrNop(log).Component("lifecycle"),
		now:       time.Now,
	}
}

// Create uploads every attachment first, one round trip each, and only
// then creates the draft. Any failed upload aborts before a record exists.
func (c *Controller) Create(ctx context.Context, actor ledger.User, input ledger.CreatePersonalExpenseInput, uploads []Upload) (*ledger.PersonalExpenseRequest, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := ledger.Validate(input); err != nil {
		return nil, err
	}
	if !ledger.AmountsOrdered(input.AmountMin, input.AmountAvg, input.AmountMax) {
		c.log.Warn("lifecycle.create: amounts out of order", "title", input.Title)
	}

	for _, upload := range uploads {
		attachment, err := c.gateway.Upload(ctx, upload.Filename, upload.ContentType, upload.Content)
		if err != nil {
			c.log.BusinessError("lifecycle.create: upload failed, request not created", err, "file", upload.Filename)
			return nil, fmt.Errorf("%w: %s: %w", ErrUploadFailed, upload.Filename, err)
		}
		input.Attachments = append(input.Attachments, *attachment)
	}

	created, err := c.gateway.CreatePersonalExpense(ctx, input)
	if err != nil {
		return nil, err
	}
	if created.Status != "" && created.Status != ledger.StatusDraft {
		c.log.Warn("lifecycle.create: gateway returned non-draft request", "id", created.ID, "status", string(created.Status))
	}

	c.cache.Reconcile(*created)
	c.refetch(ctx, "lifecycle.create", c.cache.RefreshMine)
	c.log.Info("lifecycle.create: draft created", "id", created.ID, "actor", actor.ID, "attachments", len(input.Attachments))
	return created, nil
}

func (c *Controller) Update(ctx context.Context, actor ledger.User, id string, patch ledger.PersonalExpensePatch) (*ledger.PersonalExpenseRequest, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ledger.NewValidationError("", "title")
		}
		patch.Title = &title
	}

	current, result, err := c.guardOwned(ctx, actor, id, EventEdit)
	if err != nil {
		return nil, err
	}

	min, avg, max := current.AmountMin, current.AmountAvg, current.AmountMax
	if patch.AmountMin != nil {
		min = patch.AmountMin
	}
	if patch.AmountAvg != nil {
		avg = patch.AmountAvg
	}
	if patch.AmountMax != nil {
		max = patch.AmountMax
	}
	if !ledger.AmountsOrdered(min, avg, max) {
		c.log.Warn("lifecycle.update: amounts out of order", "id", id)
	}

	updated, err := c.gateway.UpdatePersonalExpense(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.applied(ctx, actor, result, *updated, c.cache.RefreshMine)
	return updated, nil
}

func (c *Controller) Submit(ctx context.Context, actor ledger.User, id string, confirmer Confirmer) (*ledger.PersonalExpenseRequest, error) {
	_, result, err := c.guardOwned(ctx, actor, id, EventSubmit)
	if err != nil {
		return nil, err
	}
	if err := confirm(ctx, confirmer, PromptSubmit); err != nil {
		return nil, err
	}

	submitted, err := c.gateway.SubmitPersonalExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	c.applied(ctx, actor, result, *submitted, c.cache.RefreshMine)
	return submitted, nil
}

func (c *Controller) Cancel(ctx context.Context, actor ledger.User, id string, confirmer Confirmer) (*ledger.PersonalExpenseRequest, error) {
	_, result, err := c.guardOwned(ctx, actor, id, EventCancel)
	if err != nil {
		return nil, err
	}
	if err := confirm(ctx, confirmer, PromptCancel); err != nil {
		return nil, err
	}

	cancelled, err := c.gateway.CancelPersonalExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	refetch := c.cache.RefreshMine
	if result.From == ledger.StatusPending {
		refetch = c.refreshMineAndPending
	}
	c.applied(ctx, actor, result, *cancelled, refetch)
	return cancelled, nil
}

// Decide records an admin decision. All local checks (role, decision,
// amount, comment confirmation) run before the first gateway call.
func (c *Controller) Decide(ctx context.Context, actor ledger.User, id string, input DecideInput, confirmer Confirmer) (*ledger.PersonalExpenseRequest, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrNotAdmin
	}

	event, ok := DecisionEvent(input.Decision)
	if !ok {
		return nil, ledger.NewValidationError("decision must be approve or reject", "decision")
	}

	payload := ledger.DecisionPayload{Decision: input.Decision, Comment: strings.TrimSpace(input.Comment)}
	switch event {
	case EventApprove:
		amount, err := parseApprovedAmount(input.ApprovedAmount)
		if err != nil {
			return nil, err
		}
		payload.ApprovedAmount = &amount
	case EventReject:
		if payload.Comment == "" {
			if err := confirm(ctx, confirmer, PromptRejectNoReply); err != nil {
				return nil, err
			}
		}
	}

	current, err := c.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	result := Guard(current, event)
	if err := result.Err(); err != nil {
		c.log.BusinessError("lifecycle.decide: rejected locally", err, "id", id)
		return nil, err
	}

	decided, err := c.gateway.DecidePersonalExpense(ctx, id, payload)
	if err != nil {
		return nil, err
	}
	if decided.Status == ledger.StatusPending {
		c.log.Info("lifecycle.decide: waiting for quorum", "id", id,
			"approvals", decided.ApprovalsCount, "required", decided.RequiredAdminsCount)
	}

	c.applied(ctx, actor, result, *decided, c.refreshPendingAndApproved)
	return decided, nil
}

// FetchApprovals returns the approval history in server order.
func (c *Controller) FetchApprovals(ctx context.Context, mount *cache.Mount, id string) ([]ledger.ApprovalRecord, error) {
	return c.cache.LoadApprovals(ctx, mount, id)
}

func parseApprovedAmount(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, ledger.NewValidationError("approved amount is required to approve", "approved_amount")
	}
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ledger.NewValidationError("approved amount must be a number", "approved_amount")
	}
	if amount < 0 {
		return 0, ledger.NewValidationError("approved amount cannot be negative", "approved_amount")
	}
	return amount, nil
}

func confirm(ctx context.Context, confirmer Confirmer, prompt string) error {
	if confirmer == nil || !confirmer.Confirm(ctx, prompt) {
		return &ConfirmationError{Prompt: prompt}
	}
	return nil
}

// fetch reads the current request; a gateway 404 becomes a nil request so
// Guard reports not found.
func (c *Controller) fetch(ctx context.Context, id string) (*ledger.PersonalExpenseRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	current, err := c.gateway.GetPersonalExpense(ctx, id)
	if err != nil {
		if gateway.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return current, nil
}

func (c *Controller) guardOwned(ctx context.Context, actor ledger.User, id string, event Event) (*ledger.PersonalExpenseRequest, Result, error) {
	current, err := c.fetch(ctx, id)
	if err != nil {
		return nil, Result{}, err
	}
	result := Guard(current, event)
	if result.Outcome == OutcomeNotFound {
		return nil, result, result.Err()
	}
	if !current.OwnedBy(actor.ID) {
		return nil, result, ErrNotOwner
	}
	if err := result.Err(); err != nil {
		c.log.BusinessError("lifecycle."+string(event)+": rejected locally", err, "id", id)
		return nil, result, err
	}
	return current, result, nil
}

// applied reconciles the response, refetches the affected lists and
// publishes the change.
func (c *Controller) applied(ctx context.Context, actor ledger.User, result Result, item ledger.PersonalExpenseRequest, refetch func(context.Context) error) {
	op := "lifecycle." + string(result.Event)
	c.cache.Reconcile(item)
	c.refetch(ctx, op, refetch)

	c.log.Info(op+": applied", "id", item.ID, "from", string(result.From), "to", string(item.Status), "actor", actor.ID)
	c.publish(ctx, Change{
		ID:             uuid.NewString(),
		RequestID:      item.ID,
		Event:          result.Event,
		From:           result.From,
		To:             item.Status,
		Actor:          actor.ID,
		ApprovedAmount: item.ApprovedAmount,
		At:             c.now().UTC(),
	})
}

func (c *Controller) refetch(ctx context.Context, op string, refetch func(context.Context) error) {
	if err := refetch(ctx); err != nil {
		c.log.BusinessError(op+": refetch failed", err)
	}
}

func (c *Controller) refreshMineAndPending(ctx context.Context) error {
	if err := c.cache.RefreshMine(ctx); err != nil {
		return err
	}
	return c.cache.RefreshPending(ctx)
}

func (c *Controller) refreshPendingAndApproved(ctx context.Context) error {
	if err := c.cache.RefreshPending(ctx); err != nil {
		return err
	}
	return c.cache.RefreshApproved(ctx)
}

func (c *Controller) publish(ctx context.Context, change Change) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, change.RoutingKey(), change); err != nil {
		c.log.InternalError("lifecycle.publish: event not delivered", err, "routing_key", change.RoutingKey(), "id", change.RequestID)
	}
}
