package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agamariel/crowdfund/internal/auth"
	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/services"
	"github.com/agamariel/crowdfund/internal/storage"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestDonationHandler_Create(t *testing.T) {
	campaignID := uuid.New()
	donorID := uuid.New()
	okService := func(wantDonor *uuid.UUID) *mockDonationService {
		return &mockDonationService{
			CreateFunc: func(ctx context.Context, in services.DonationInput) (*models.Payment, *provider.PaymentIntent, error) {
				if (in.DonorID == nil) != (wantDonor == nil) || (wantDonor != nil && *in.DonorID != *wantDonor) {
					return nil, nil, fmt.Errorf("unexpected donor %v", in.DonorID)
				}
				return &models.Payment{ExternalReference: "pay-1", Amount: 2550},
					&provider.PaymentIntent{Reference: "pay-1", CheckoutURL: "https://pay/1"}, nil
			},
		}
	}
	failing := func(err error) *mockDonationService {
		return &mockDonationService{
			CreateFunc: func(context.Context, services.DonationInput) (*models.Payment, *provider.PaymentIntent, error) {
				return nil, nil, err
			},
		}
	}
	body := `{"name":"Alice","email":"alice@example.com","amount":"25.50"}`

	tests := []struct {
		name           string
		body           string
		user           *uuid.UUID
		service        *mockDonationService
		expectedStatus int
	}{
		{name: "anonymous caller", body: body, service: okService(nil), expectedStatus: http.StatusCreated},
		{name: "signed in caller", body: body, user: &donorID, service: okService(&donorID), expectedStatus: http.StatusCreated},
		{name: "bad email", body: `{"email":"nope","amount":"1"}`, service: okService(nil), expectedStatus: http.StatusBadRequest},
		{name: "zero amount", body: body, service: failing(fmt.Errorf("%w: amount", services.ErrValidation)), expectedStatus: http.StatusUnprocessableEntity},
		{name: "campaign closed", body: body, service: failing(services.ErrCampaignNotActive), expectedStatus: http.StatusUnprocessableEntity},
		{name: "campaign missing", body: body, service: failing(storage.ErrCampaignNotFound), expectedStatus: http.StatusNotFound},
		{name: "provider down", body: body, service: failing(fmt.Errorf("%w: boom", services.ErrProviderError)), expectedStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(campaignID.String())
			if tt.user != nil {
				c.Set(string(auth.UserIDKey), *tt.user)
			}

			err := NewDonationHandler(tt.service, nil).Create(c)
			if got := statusOf(err, rec.Code); got != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (err %v)", got, tt.expectedStatus, err)
			}
			if tt.expectedStatus == http.StatusCreated {
				var resp models.DonationIntentResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.Reference != "pay-1" || resp.CheckoutURL != "https://pay/1" || resp.Amount != 2550 {
					t.Errorf("unexpected response %+v", resp)
				}
			}
		})
	}
}
