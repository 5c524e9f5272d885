package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/ticket-marketplace/internal/config"
	"github.com/iliyamo/ticket-marketplace/internal/handler"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/repository/memstore"
	"github.com/iliyamo/ticket-marketplace/internal/service"
)

const secret = "router-test"

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost}

	inv := service.NewInventory(store)
	tickets := service.NewTickets(store, log)
	ledger := service.NewLedger(store)
	events := service.NewEventService(store, inv, log)
	sales := service.NewSaleWorkflow(store, inv, tickets, ledger, nil, log)
	resale := service.NewResaleWorkflow(store, tickets, ledger, nil, log)

	passthrough := middleware.NewRedisCache(config.CacheConfig{}, nil, log)
	e := echo.New()
	RegisterRoutes(e)
	RegisterAuth(e, handler.NewAuthHandler(cfg, store, store, log), secret)
	RegisterPublic(e, handler.NewPublicHandler(events, inv, resale, log), passthrough)
	RegisterBuyer(e, handler.NewBuyerHandler(sales, resale, tickets, ledger, log), secret, passthrough)
	RegisterOrganizer(e, handler.NewOrganizerHandler(events, tickets, log), secret)
	return e
}

type client struct {
	t     *testing.T
	e     *echo.Echo
	token string
}

func (c client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if bs := rec.Body.Bytes(); len(bs) > 0 && bs[0] == '{' {
		require.NoError(c.t, json.Unmarshal(bs, &out))
	}
	return rec.Code, out
}

func (c client) list(path string) []any {
	c.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var out []any
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func signUp(t *testing.T, e *echo.Echo, email, role string) client {
	t.Helper()
	code, body := client{t: t, e: e}.do(http.MethodPost, "/v1/auth/register",
		map[string]string{"email": email, "password": "password123", "role": role})
	require.Equal(t, http.StatusCreated, code, body)
	access := body["access"].(map[string]any)
	return client{t: t, e: e, token: access["token"].(string)}
}

func TestMarketplaceOverHTTP(t *testing.T) {
	e := newServer(t)
	org := signUp(t, e, "org@example.com", "ORGANIZER")
	alice := signUp(t, e, "alice@example.com", "BUYER")
	bob := signUp(t, e, "bob@example.com", "")
	anon := client{t: t, e: e}

	code, _ := anon.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = alice.do(http.MethodPost, "/v1/events", map[string]any{"name": "Gig"})
	assert.Equal(t, http.StatusForbidden, code)

	code, ev := org.do(http.MethodPost, "/v1/events", map[string]any{
		"name": "Gig", "place": "Arena", "date": "2027-05-01T20:00:00Z", "price": "20.00", "capacity": 10,
	})
	require.Equal(t, http.StatusCreated, code, ev)
	eventID := ev["id"].(string)
	assert.Len(t, anon.list("/v1/events?place=Arena"), 1)

	code, _ = anon.do(http.MethodPost, "/v1/events/"+eventID+"/purchase", map[string]int{"quantity": 1})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, sale := alice.do(http.MethodPost, "/v1/events/"+eventID+"/purchase", map[string]int{"quantity": 2})
	require.Equal(t, http.StatusCreated, code, sale)
	assert.Equal(t, true, sale["success"])
	ticketID := sale["ticket_ids"].([]any)[0].(string)

	code, short := alice.do(http.MethodPost, "/v1/events/"+eventID+"/purchase", map[string]int{"quantity": 100})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "only 8 tickets remaining", short["message"])
	assert.Equal(t, "insufficient_inventory", short["error_kind"])

	_, avail := anon.do(http.MethodGet, "/v1/events/"+eventID+"/availability", nil)
	assert.EqualValues(t, 8, avail["available"])

	code, listing := alice.do(http.MethodPost, "/v1/tickets/"+ticketID+"/resale", map[string]string{"price": "30"})
	require.Equal(t, http.StatusCreated, code, listing)
	listingID := listing["listing_id"].(string)
	assert.Len(t, anon.list("/v1/resales"), 1)

	code, own := alice.do(http.MethodPost, "/v1/resales/"+listingID+"/purchase", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "you cannot buy your own resale", own["message"])

	code, bought := bob.do(http.MethodPost, "/v1/resales/"+listingID+"/purchase", nil)
	require.Equal(t, http.StatusOK, code, bought)

	code, tk := bob.do(http.MethodGet, "/v1/tickets/"+ticketID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "valid", tk["state"])
	code, _ = alice.do(http.MethodGet, "/v1/tickets/"+ticketID, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = org.do(http.MethodPost, "/v1/tickets/"+ticketID+"/redeem", nil)
	assert.Equal(t, http.StatusOK, code)
	code, again := org.do(http.MethodPost, "/v1/tickets/"+ticketID+"/redeem", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_state", again["error_kind"])

	_, validity := bob.do(http.MethodGet, "/v1/tickets/"+ticketID+"/validity", nil)
	assert.Equal(t, false, validity["valid"])

	assert.Len(t, bob.list("/v1/my-transactions"), 1)
	assert.Len(t, alice.list("/v1/my-transactions"), 2)
	assert.Len(t, alice.list("/v1/my-tickets"), 1)

	code, _ = org.do(http.MethodPost, "/v1/events/"+eventID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, code)
	code, cancelled := bob.do(http.MethodPost, "/v1/events/"+eventID+"/purchase", map[string]int{"quantity": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "event has been cancelled", cancelled["message"])
}

func TestAuthSessionLifecycle(t *testing.T) {
	e := newServer(t)
	anon := client{t: t, e: e}
	reg := map[string]string{"email": "Carol@Example.com", "password": "password123"}

	code, body := anon.do(http.MethodPost, "/v1/auth/register", reg)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "BUYER", body["user"].(map[string]any)["role"])
	code, _ = anon.do(http.MethodPost, "/v1/auth/register", reg)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = anon.do(http.MethodPost, "/v1/auth/login", map[string]string{"email": "carol@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, login := anon.do(http.MethodPost, "/v1/auth/login", map[string]string{"email": "carol@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, code)
	refresh := login["refresh"].(map[string]any)["token"].(string)

	code, rotated := anon.do(http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, code)
	code, _ = anon.do(http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, code, "old refresh token is revoked")

	me := client{t: t, e: e, token: rotated["access"].(map[string]any)["token"].(string)}
	code, who := me.do(http.MethodGet, "/v1/me", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BUYER", who["role"])

	code, _ = me.do(http.MethodPost, "/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, code)
	newRefresh := rotated["refresh"].(map[string]any)["token"].(string)
	code, _ = anon.do(http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": newRefresh})
	assert.Equal(t, http.StatusUnauthorized, code)
}
