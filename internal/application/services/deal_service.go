package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
)

// DealInput is the body of a create request.
type DealInput struct {
	Name     string              `json:"name"`
	ClientID *string             `json:"client_id,omitempty"`
	OwnerID  string              `json:"owner_id,omitempty"`
	Amount   float64             `json:"amount"`
	Stage    constants.DealStage `json:"stage,omitempty"`
}

// DealService moves deals through the pipeline.
type DealService struct {
	deals      DealStore
	tx         TxRunner
	dispatcher ports.EventDispatcher
	now        func() time.Time
	logger     *slog.Logger
}

func NewDealService(deals DealStore, tx TxRunner, dispatcher ports.EventDispatcher, logger *slog.Logger) *DealService {
	return &DealService{
		deals:      deals,
		tx:         tx,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

func dealPayload(d *models.Deal) map[string]any {
	return map[string]any{events.KeyDeal: d}
}

func (s *DealService) Create(ctx context.Context, actor *auth.UserSession, in DealInput) (*models.Deal, error) {
	name, err := checkLabel("name", in.Name)
	if err != nil {
		return nil, err
	}
	if in.Amount < 0 {
		return nil, apperrors.NewValidationError("amount", "must not be negative")
	}
	if in.Stage == "" {
		in.Stage = constants.DealStageLead
	}
	if !in.Stage.Valid() || in.Stage.IsClosed() {
		return nil, apperrors.NewValidationError("stage", "must be an open pipeline stage")
	}
	if in.OwnerID == "" && actor != nil {
		in.OwnerID = actor.ID
	}
	if in.OwnerID == "" {
		return nil, apperrors.NewValidationError("owner_id", "is required")
	}

	deal := &models.Deal{
		ID:       utils.GenerateID(),
		Name:     name,
		ClientID: in.ClientID,
		OwnerID:  in.OwnerID,
		Amount:   in.Amount,
		Stage:    in.Stage,
	}
	err = mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		if err := s.deals.Create(ctx, deal); err != nil {
			return nil, err
		}
		ev, err := newEvent(ctx, events.DealCreated, actor, constants.SubjectDeal, deal.ID, dealPayload(deal))
		if err != nil {
			return nil, err
		}
		return []*events.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return deal, nil
}

// ChangeStage moves an open deal to another stage. Moving to won or lost goes
// through Win and Lose so the matching event is raised.
func (s *DealService) ChangeStage(ctx context.Context, actor *auth.UserSession, id string, stage constants.DealStage) (*models.Deal, error) {
	if !stage.Valid() {
		return nil, apperrors.NewValidationError("stage", "unknown stage")
	}
	switch stage {
	case constants.DealStageWon:
		return s.Win(ctx, actor, id)
	case constants.DealStageLost:
		return s.Lose(ctx, actor, id, "")
	}
	return s.transition(ctx, actor, id, stage, "")
}

func (s *DealService) Win(ctx context.Context, actor *auth.UserSession, id string) (*models.Deal, error) {
	return s.transition(ctx, actor, id, constants.DealStageWon, "")
}

func (s *DealService) Lose(ctx context.Context, actor *auth.UserSession, id, reason string) (*models.Deal, error) {
	return s.transition(ctx, actor, id, constants.DealStageLost, strings.TrimSpace(reason))
}

// transition raises deal.stage_changed for every move, plus deal.won or
// deal.lost when the deal closes.
func (s *DealService) transition(ctx context.Context, actor *auth.UserSession, id string, stage constants.DealStage, reason string) (*models.Deal, error) {
	var deal *models.Deal
	err := mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		var err error
		if deal, err = s.deals.Get(ctx, id); err != nil {
			return nil, err
		}
		if deal == nil {
			return nil, apperrors.NewNotFoundError("deal", id)
		}
		if deal.Stage.IsClosed() {
			return nil, apperrors.NewConflictError("deal", "deal is closed as "+string(deal.Stage))
		}
		if deal.Stage == stage {
			return nil, nil
		}

		previous := deal.Stage
		deal.Stage = stage
		if stage.IsClosed() {
			deal.ClosedAt = utils.Ptr(s.now())
		}
		if stage == constants.DealStageLost && reason != "" {
			deal.LostReason = &reason
		}
		if err := s.deals.Update(ctx, deal); err != nil {
			return nil, err
		}

		payload := dealPayload(deal)
		payload[events.KeyPreviousStage] = string(previous)
		changed, err := newEvent(ctx, events.DealStageChanged, actor, constants.SubjectDeal, deal.ID, payload)
		if err != nil {
			return nil, err
		}
		evs := []*events.Event{changed}

		var closed *events.Event
		switch stage {
		case constants.DealStageWon:
			closed, err = newEvent(ctx, events.DealWon, actor, constants.SubjectDeal, deal.ID, dealPayload(deal))
		case constants.DealStageLost:
			p := dealPayload(deal)
			p[events.KeyReason] = reason
			closed, err = newEvent(ctx, events.DealLost, actor, constants.SubjectDeal, deal.ID, p)
		}
		if err != nil {
			return nil, err
		}
		if closed != nil {
			evs = append(evs, closed)
		}
		return evs, nil
	})
	if err != nil {
		return nil, err
	}
	return deal, nil
}
