package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
	"github.com/nexuscrm/taskdesk/pkg/validator"
)

// ClientInput is the body of a create request.
type ClientInput struct {
	Name    string  `json:"name"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Company *string `json:"company,omitempty"`
}

// ClientPatch is the body of an update request. Nil fields are left alone.
type ClientPatch struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Company *string `json:"company,omitempty"`
	OwnerID *string `json:"owner_id,omitempty"`
}

type ClientService struct {
	clients    ClientStore
	tx         TxRunner
	dispatcher ports.EventDispatcher
	now        func() time.Time
	logger     *slog.Logger
}

func NewClientService(clients ClientStore, tx TxRunner, dispatcher ports.EventDispatcher, logger *slog.Logger) *ClientService {
	return &ClientService{
		clients:    clients,
		tx:         tx,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

func clientPayload(c *models.Client) map[string]any {
	return map[string]any{events.KeyClient: c}
}

func validateClientContact(email, phone *string) error {
	if email != nil {
		if err := validator.Validate("email", *email); err != nil {
			return apperrors.NewValidationError("email", err.Error())
		}
	}
	if phone != nil {
		if err := validator.Validate("phone", *phone); err != nil {
			return apperrors.NewValidationError("phone", err.Error())
		}
	}
	return nil
}

func (s *ClientService) Create(ctx context.Context, actor *auth.UserSession, in ClientInput) (*models.Client, error) {
	name, err := checkLabel("name", in.Name)
	if err != nil {
		return nil, err
	}
	if err := validateClientContact(in.Email, in.Phone); err != nil {
		return nil, err
	}

	client := &models.Client{
		ID:      utils.GenerateID(),
		Name:    name,
		Email:   in.Email,
		Phone:   in.Phone,
		Company: in.Company,
		OwnerID: actor.ID,
	}
	err = mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		if err := s.clients.Create(ctx, client); err != nil {
			return nil, err
		}
		ev, err := newEvent(ctx, events.ClientCreated, actor, constants.SubjectClient, client.ID, clientPayload(client))
		if err != nil {
			return nil, err
		}
		return []*events.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *ClientService) Update(ctx context.Context, actor *auth.UserSession, id string, patch ClientPatch) (*models.Client, error) {
	if patch.Name != nil {
		name, err := checkLabel("name", *patch.Name)
		if err != nil {
			return nil, err
		}
		patch.Name = &name
	}
	if err := validateClientContact(patch.Email, patch.Phone); err != nil {
		return nil, err
	}

	var client *models.Client
	err := mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		var err error
		if client, err = s.load(ctx, id); err != nil {
			return nil, err
		}

		changes := Changes{}
		if patch.Name != nil {
			changes.Track("name", client.Name, *patch.Name)
			client.Name = *patch.Name
		}
		if patch.Email != nil {
			changes.Track("email", client.Email, patch.Email)
			client.Email = patch.Email
		}
		if patch.Phone != nil {
			changes.Track("phone", client.Phone, patch.Phone)
			client.Phone = patch.Phone
		}
		if patch.Company != nil {
			changes.Track("company", client.Company, patch.Company)
			client.Company = patch.Company
		}
		if patch.OwnerID != nil && *patch.OwnerID != "" {
			changes.Track("owner_id", client.OwnerID, *patch.OwnerID)
			client.OwnerID = *patch.OwnerID
		}
		if changes.Empty() {
			return nil, nil
		}

		if err := s.clients.Update(ctx, client); err != nil {
			return nil, err
		}
		payload := clientPayload(client)
		payload[events.KeyChanges] = changes.Payload()
		ev, err := newEvent(ctx, events.ClientUpdated, actor, constants.SubjectClient, client.ID, payload)
		if err != nil {
			return nil, err
		}
		return []*events.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Delete soft-deletes the client.
func (s *ClientService) Delete(ctx context.Context, actor *auth.UserSession, id string) error {
	return mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		client, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		client.DeletedAt = utils.Ptr(s.now())
		if err := s.clients.Update(ctx, client); err != nil {
			return nil, err
		}
		ev, err := newEvent(ctx, events.ClientDeleted, actor, constants.SubjectClient, client.ID, clientPayload(client))
		if err != nil {
			return nil, err
		}
		return []*events.Event{ev}, nil
	})
}

func (s *ClientService) load(ctx context.Context, id string) (*models.Client, error) {
	c, err := s.clients.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperrors.NewNotFoundError("client", id)
	}
	return c, nil
}
