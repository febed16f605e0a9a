package desk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/domain"
	apperrors "github.com/spec-kit/desk-bridge/pkg/util/errorutil"
)

// identityDomain is reserved for documentation and never delivers mail.
const identityDomain = "example.com"

const (
	defaultContactFirstName = "Telegram"
	defaultContactLastName  = "User"
)

// DeriveIdentity maps a chat user onto its ticket-system lookup key. The handle wins over
// the numeric id.
func DeriveIdentity(user domain.ChatUser) domain.ContactIdentity {
	key := user.Username
	if key == "" {
		key = strconv.FormatInt(user.ID, 10)
	}
	return domain.ContactIdentity(fmt.Sprintf("telegram_%s@%s", key, identityDomain))
}

// ContactResolver finds or creates the ticket-system contact for a chat user.
type ContactResolver struct {
	client Doer
	logger *zap.Logger
}

// NewContactResolver constructs a resolver.
func NewContactResolver(client Doer, logger *zap.Logger) *ContactResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactResolver{client: client, logger: logger}
}

type contactSearchResponse struct {
	Data []domain.Contact `json:"data"`
}

// Resolve returns the id of the contact keyed by the user's derived identity, creating the
// contact when the directory has none. No result is cached.
func (r *ContactResolver) Resolve(ctx context.Context, user domain.ChatUser) (string, error) {
	identity := DeriveIdentity(user)
	logger := r.logger.With(zap.Int64("user_id", user.ID), zap.String("identity", string(identity)))

	existing, err := r.search(ctx, identity)
	if err != nil {
		logger.Error("contact search failed", zap.Error(err))
		return "", apperrors.NewBridgeError(apperrors.CodeContactResolutionFailed, "contact search failed", err)
	}
	if existing != "" {
		logger.Info("found existing contact", zap.String("contact_id", existing))
		return existing, nil
	}

	created, err := r.create(ctx, user, identity)
	if err != nil {
		logger.Error("contact create failed", zap.Error(err))
		return "", apperrors.NewBridgeError(apperrors.CodeContactResolutionFailed, "contact create failed", err)
	}
	logger.Info("created contact", zap.String("contact_id", created))
	return created, nil
}

func (r *ContactResolver) search(ctx context.Context, identity domain.ContactIdentity) (string, error) {
	resp, err := r.client.Do(ctx, Request{
		Operation: OpContactSearch,
		Method:    http.MethodGet,
		Path:      "/api/v1/contacts/search",
		Query:     url.Values{"email": {string(identity)}},
	})
	if err != nil {
		return "", err
	}
	if resp.Status == http.StatusNoContent {
		return "", nil
	}
	var parsed contactSearchResponse
	if err := resp.Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode contact search: %w", err)
	}
	for _, c := range parsed.Data {
		if c.ID != "" {
			return c.ID, nil
		}
	}
	return "", nil
}

func (r *ContactResolver) create(ctx context.Context, user domain.ChatUser, identity domain.ContactIdentity) (string, error) {
	contact := domain.Contact{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     identity,
	}
	if contact.FirstName == "" {
		contact.FirstName = defaultContactFirstName
	}
	if contact.LastName == "" {
		contact.LastName = defaultContactLastName
	}

	resp, err := r.client.Do(ctx, Request{
		Operation: OpContactCreate,
		Method:    http.MethodPost,
		Path:      "/api/v1/contacts",
		Body: createContactRequest{
			FirstName: contact.FirstName,
			LastName:  contact.LastName,
			Email:     string(contact.Email),
		},
	})
	if err != nil {
		return "", err
	}
	var created domain.Contact
	if err := resp.Decode(&created); err != nil {
		return "", fmt.Errorf("decode contact create: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("contact create returned no id")
	}
	return created.ID, nil
}

type createContactRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}
