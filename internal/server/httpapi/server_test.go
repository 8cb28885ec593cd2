package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/ledger"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	"github.com/dmitrijs2005/ticketkeeper/internal/orchestrator"
	"github.com/dmitrijs2005/ticketkeeper/internal/pricing"
	"github.com/dmitrijs2005/ticketkeeper/internal/qrauth"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/auth"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/services"
	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

// ---- fakes ----

type fakeUsers struct {
	registered services.RegisterInput
	verifyErr  error
}

func (f *fakeUsers) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	f.registered = in
	return &models.User{ID: "u-1", Email: in.Email, PasswordHash: []byte("hash"), EncryptedKey: "iv:ct", WalletAddress: "0xabc"}, nil
}

func (f *fakeUsers) Login(_ context.Context, email, password string) (string, *models.User, error) {
	if password != "pw" {
		return "", nil, common.ErrorUnauthorized
	}
	tok, err := auth.GenerateToken("u-1", []byte(secret), time.Hour)
	return tok, &models.User{ID: "u-1", Email: email}, err
}

func (f *fakeUsers) Get(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (f *fakeUsers) SendVerificationCode(context.Context, string) error { return nil }

func (f *fakeUsers) VerifyPhone(context.Context, string, string) error { return f.verifyErr }

type fakeTickets struct {
	prices   *pricing.Converter
	err      error
	lastUser string
	lastTo   string
	lastOp   ticketnft.Operation
	lastQR   qrauth.Payload
	lastUSD  decimal.Decimal
}

var okResult = &orchestrator.Result{TxHash: ethcommon.HexToHash("0xabc1"), BlockNumber: 5, FundingTxHash: ethcommon.HexToHash("0xf00d")}

func (f *fakeTickets) result(userID string) (*orchestrator.Result, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return okResult, nil
}

func (f *fakeTickets) Prices() *pricing.Converter { return f.prices }

func (f *fakeTickets) Mint(_ context.Context, userID, to, eventID string) (*orchestrator.Result, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Result{TxHash: ethcommon.HexToHash("0x01"), Minted: &ticketnft.MintedEvent{TokenID: big.NewInt(7), EventInfo: eventID}}, nil
}

func (f *fakeTickets) MintAndList(_ context.Context, userID, _, _ string, usd decimal.Decimal) (*orchestrator.Result, error) {
	f.lastUSD = usd
	return f.result(userID)
}

func (f *fakeTickets) List(_ context.Context, userID string, _ *big.Int, usd decimal.Decimal) (*orchestrator.Result, error) {
	f.lastUSD = usd
	return f.result(userID)
}

func (f *fakeTickets) Unlist(_ context.Context, userID string, _ *big.Int) (*orchestrator.Result, error) {
	return f.result(userID)
}

func (f *fakeTickets) Buy(_ context.Context, userID string, _ *big.Int) (*orchestrator.Result, error) {
	return f.result(userID)
}

func (f *fakeTickets) Transfer(_ context.Context, userID string, _ *big.Int, to string) (*orchestrator.Result, error) {
	f.lastTo = to
	return f.result(userID)
}

func (f *fakeTickets) GenerateQR(_ context.Context, _ string, id *big.Int) (*qrauth.Payload, error) {
	return &qrauth.Payload{TokenID: id, Nonce: 1700000000000, Expiration: 1700000300, Signature: bytes.Repeat([]byte{0xab}, 65)}, nil
}

func (f *fakeTickets) ValidateQR(_ context.Context, userID string, p qrauth.Payload) (*orchestrator.Result, error) {
	f.lastQR = p
	return f.result(userID)
}

func (f *fakeTickets) Submit(_ context.Context, userID string, op ticketnft.Operation) (*orchestrator.Result, error) {
	f.lastOp = op
	return f.result(userID)
}

func (f *fakeTickets) Ticket(_ context.Context, id *big.Int) (*ticketnft.TicketRecord, error) {
	if id.Int64() == 404 {
		return nil, common.ErrorNotFound
	}
	return &ticketnft.TicketRecord{TokenID: id, PriceWei: big.NewInt(10_000_000_000_000_000), Owner: ethcommon.HexToAddress("0x02"), ForSale: true, EventID: "ev-1"}, nil
}

func (f *fakeTickets) Tickets(ctx context.Context) ([]*ticketnft.TicketRecord, error) {
	t, _ := f.Ticket(ctx, big.NewInt(0))
	return []*ticketnft.TicketRecord{t}, nil
}

func (f *fakeTickets) MintedTo(context.Context, string) ([]ticketnft.MintedEvent, error) {
	return []ticketnft.MintedEvent{{TokenID: big.NewInt(3), EventInfo: "ev-1"}}, nil
}

func (f *fakeTickets) LatestBlock(context.Context) (*ledger.BlockInfo, error) {
	return &ledger.BlockInfo{Number: 42}, nil
}

func (f *fakeTickets) Block(_ context.Context, n uint64) (*ledger.BlockInfo, error) {
	if n > 100 {
		return nil, common.ErrorNotFound
	}
	return &ledger.BlockInfo{Number: n}, nil
}

type fakeEvents struct{}

func (fakeEvents) Create(_ context.Context, userID string, in services.EventInput) (*models.Event, error) {
	return &models.Event{ID: "ev-1", OrganizerID: userID, Name: in.Name, Date: in.Date}, nil
}

func (fakeEvents) Get(_ context.Context, id string) (*models.Event, error) {
	if id != "ev-1" {
		return nil, common.ErrorNotFound
	}
	return &models.Event{ID: id, ImageKey: "events/ev-1/x"}, nil
}

func (fakeEvents) List(context.Context) ([]*models.Event, error) { return nil, nil }

func (fakeEvents) ListByOrganizer(_ context.Context, userID string) ([]*models.Event, error) {
	return []*models.Event{{ID: "ev-1", OrganizerID: userID}}, nil
}

func (fakeEvents) Update(_ context.Context, _, id string, in services.EventInput) (*models.Event, error) {
	return &models.Event{ID: id, Name: in.Name}, nil
}

func (fakeEvents) Delete(context.Context, string, string) error { return common.ErrorForbidden }

func (fakeEvents) ImageUploadURL(_ context.Context, _, id string) (*services.ImageUpload, error) {
	return &services.ImageUpload{Key: "events/" + id + "/k", URL: "https://s3/put"}, nil
}

func (fakeEvents) ImageURL(_ context.Context, e *models.Event) (string, error) {
	return "https://s3/get/" + e.ImageKey, nil
}

// ---- helpers ----

type testServer struct {
	handler http.Handler
	users   *fakeUsers
	tickets *fakeTickets
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	prices, err := pricing.NewConverter(decimal.NewFromInt(2000))
	require.NoError(t, err)

	ts := &testServer{users: &fakeUsers{}, tickets: &fakeTickets{prices: prices}}
	s := NewServer(":0", logging.Nop(), ts.users, ts.tickets, fakeEvents{}, secret, []string{"*"})
	ts.handler = s.Router()

	ts.token, err = auth.GenerateToken("u-1", []byte(secret), time.Hour)
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, authed bool) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

// ---- tests ----

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrAuthenticationRequired, http.StatusUnauthorized},
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrorForbidden, http.StatusForbidden},
		{common.ErrorNotFound, http.StatusNotFound},
		{common.ErrEventNotFound, http.StatusNotFound},
		{common.ErrQRExpired, http.StatusGone},
		{common.ErrQRReplayed, http.StatusConflict},
		{fmt.Errorf("buy: %w", common.ErrLedgerRejected), http.StatusUnprocessableEntity},
		{common.ErrorInvalidArgument, http.StatusBadRequest},
		{common.ErrUnknownOperation, http.StatusBadRequest},
		{common.ErrInvalidCiphertextFormat, http.StatusBadRequest},
		{common.ErrTransactionTimeout, http.StatusGatewayTimeout},
		{common.ErrLedgerUnreachable, http.StatusBadGateway},
		{common.ErrFundingFailed, http.StatusBadGateway},
		{common.ErrGasEstimationFailed, http.StatusBadGateway},
		{common.ErrInvalidReceipt, http.StatusBadGateway},
		{common.ErrDecryptionFailure, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec, body := ts.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/transaction/tickets", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AuthenticationRequired", body["errorKind"])

	expired, err := auth.GenerateToken("u-1", []byte(secret), -time.Minute)
	require.NoError(t, err)
	ts.token = expired
	rec, body = ts.do(t, http.MethodGet, "/api/transaction/tickets", "", true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AuthenticationInvalid", body["errorKind"])
}

func TestRegisterHidesSecrets(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/auth/register",
		`{"email":"a@b.co","password":"pw123456","name":"A","phone":"+1","isDistributor":true}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "0xabc", body["walletAddress"])
	assert.NotContains(t, rec.Body.String(), "iv:ct")
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.True(t, ts.users.registered.IsDistributor)
}

func TestRegister_MalformedBody(t *testing.T) {
	ts := newTestServer(t)
	rec, body := ts.do(t, http.MethodPost, "/api/auth/register", `{"email":`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidArgument", body["errorKind"])
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.co","password":"pw"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["token"])

	rec, body = ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.co","password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AuthenticationInvalid", body["errorKind"])
}

func TestVerifyCode(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodPost, "/api/auth/validate", `{"code":""}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.users.verifyErr = fmt.Errorf("%w: invalid or expired code", common.ErrorInvalidArgument)
	rec, _ = ts.do(t, http.MethodPost, "/api/auth/validate", `{"code":"123456"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.users.verifyErr = nil
	rec, _ = ts.do(t, http.MethodPost, "/api/auth/validate", `{"code":"123456"}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuy_Success(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/transaction/tickets/7/buy", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, okResult.TxHash.Hex(), body["txHash"])
	assert.Equal(t, "ticket purchased", body["message"])
	assert.Equal(t, "u-1", ts.tickets.lastUser)
}

func TestBuy_LedgerRejectedForwardsReason(t *testing.T) {
	ts := newTestServer(t)
	ts.tickets.err = &ledger.RejectedError{Code: 3, Reason: "Ticket not for sale"}

	rec, body := ts.do(t, http.MethodPost, "/api/transaction/tickets/7/buy", "", true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "LedgerRejected", body["errorKind"])
	assert.Contains(t, body["message"], "Ticket not for sale")
}

func TestInternalErrorIsGeneric(t *testing.T) {
	ts := newTestServer(t)
	ts.tickets.err = errors.New("pq: relation tickets does not exist")

	rec, body := ts.do(t, http.MethodPost, "/api/transaction/tickets/7/unlist", "", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal", body["errorKind"])
	assert.Equal(t, "internal error", body["message"])
}

func TestServerSideFailuresHideDetail(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantKind string
		wantMsg  string
	}{
		{
			err:      fmt.Errorf("%w: Post \"https://node.example/v3/SECRET\": connection refused", common.ErrLedgerUnreachable),
			wantCode: http.StatusBadGateway,
			wantKind: "LedgerUnreachable",
			wantMsg:  "ledger node unavailable",
		},
		{
			err:      fmt.Errorf("%w: insufficient funds for SECRET", common.ErrFundingFailed),
			wantCode: http.StatusBadGateway,
			wantKind: "FundingFailed",
			wantMsg:  "custodian could not fund the transaction",
		},
		{
			err:      fmt.Errorf("%w: SECRET", common.ErrGasEstimationFailed),
			wantCode: http.StatusBadGateway,
			wantKind: "GasEstimationFailed",
			wantMsg:  "could not estimate gas for the transaction",
		},
		{
			err:      fmt.Errorf("%w: zero hash for SECRET", common.ErrInvalidReceipt),
			wantCode: http.StatusBadGateway,
			wantKind: "InvalidReceipt",
			wantMsg:  "ledger returned an invalid receipt",
		},
		{
			err:      fmt.Errorf("%w: SECRET", common.ErrDecryptionFailure),
			wantCode: http.StatusInternalServerError,
			wantKind: "DecryptionFailure",
			wantMsg:  "stored key could not be decrypted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			ts := newTestServer(t)
			ts.tickets.err = tt.err

			rec, body := ts.do(t, http.MethodPost, "/api/transaction/tickets/7/unlist", "", true)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantKind, body["errorKind"])
			assert.Equal(t, tt.wantMsg, body["message"])
			assert.NotContains(t, rec.Body.String(), "SECRET")
		})
	}
}

func TestBadTokenID(t *testing.T) {
	ts := newTestServer(t)
	for _, id := range []string{"abc", "-1", "1.5"} {
		rec, body := ts.do(t, http.MethodPost, "/api/transaction/tickets/"+id+"/buy", "", true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
		assert.Equal(t, "InvalidArgument", body["errorKind"], id)
	}
}

func TestListForSale_ParsesUSD(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodPost, "/api/transaction/tickets/7/list", `{"priceUsd":"19.99"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "19.99", ts.tickets.lastUSD.String())

	rec, _ = ts.do(t, http.MethodPost, "/api/transaction/tickets/7/list", `{"priceUsd":"lots"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMint_ReturnsLedgerTokenID(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/transaction/tickets/mint", `{"eventId":"ev-1"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", body["tokenId"])

	rec, _ = ts.do(t, http.MethodPost, "/api/transaction/tickets/mint", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTicket(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/transaction/tickets/3", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", body["tokenId"])
	assert.Equal(t, "20.00", body["priceUsd"])
	assert.Equal(t, "ev-1", body["eventId"])

	rec, body = ts.do(t, http.MethodGet, "/api/transaction/tickets/404", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ResourceNotFound", body["errorKind"])
}

func TestQR_RoundTripThroughJSON(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodPost, "/api/transaction/tickets/5/qr", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	issued := rec.Body.String()
	assert.Contains(t, issued, `"signature":"0xabab`)

	rec, _ = ts.do(t, http.MethodPost, "/api/transaction/qr/validate", issued, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), ts.tickets.lastQR.TokenID.Int64())
	assert.Len(t, ts.tickets.lastQR.Signature, 65)
	assert.Equal(t, int64(1700000300), ts.tickets.lastQR.Expiration)
}

func TestQRValidate_ExpiredAndReplayed(t *testing.T) {
	ts := newTestServer(t)
	payload := `{"tokenId":"5","nonce":1,"expiration":2,"signature":"0x00"}`

	ts.tickets.err = fmt.Errorf("%w: expired", common.ErrQRExpired)
	rec, body := ts.do(t, http.MethodPost, "/api/transaction/qr/validate", payload, true)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "QRExpired", body["errorKind"])

	ts.tickets.err = common.ErrQRReplayed
	rec, body = ts.do(t, http.MethodPost, "/api/transaction/qr/validate", payload, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "QRReplayed", body["errorKind"])
}

func TestSubmitOperation(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/transaction/operations/burnTicket", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UnknownOperation", body["errorKind"])

	rec, _ = ts.do(t, http.MethodPost, "/api/transaction/operations/buyTicket", `{"tokenId":"9"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	buy, ok := ts.tickets.lastOp.(ticketnft.BuyTicket)
	require.True(t, ok)
	assert.Equal(t, int64(9), buy.TokenID.Int64())
	assert.Nil(t, buy.Price)

	rec, _ = ts.do(t, http.MethodPost, "/api/transaction/operations/mintAndList",
		`{"to":"0x00000000000000000000000000000000000000aa","eventInfo":"ev-1","priceWei":"1000"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	mal, ok := ts.tickets.lastOp.(ticketnft.MintAndList)
	require.True(t, ok)
	assert.Equal(t, "1000", mal.Price.String())

	rec, _ = ts.do(t, http.MethodPost, "/api/transaction/operations/mintTicket", `{"to":"nope"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/transaction/operations/transferTicket",
		`{"tokenId":"3","to":"0x00000000000000000000000000000000000000bb"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	tr, ok := ts.tickets.lastOp.(ticketnft.TransferTicket)
	require.True(t, ok)
	assert.Equal(t, int64(3), tr.TokenID.Int64())
	assert.Equal(t, ethcommon.HexToAddress("0xbb"), tr.To)

	rec, _ = ts.do(t, http.MethodPost, "/api/transaction/operations/validateWithSignature",
		`{"tokenId":"1","nonce":"5","expiration":"6","signature":"0x01"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	v, ok := ts.tickets.lastOp.(ticketnft.ValidateWithSignature)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01}, v.Signature)
}

func TestTransfer(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/transaction/tickets/7/transfer", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidArgument", body["errorKind"])

	rec, body = ts.do(t, http.MethodPost, "/api/transaction/tickets/7/transfer",
		`{"to":"0x00000000000000000000000000000000000000bb"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ticket transferred", body["message"])
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", ts.tickets.lastTo)
	assert.Equal(t, "u-1", ts.tickets.lastUser)

	rec, _ = ts.do(t, http.MethodPost, "/api/transaction/tickets/7/transfer",
		`{"to":"0x00000000000000000000000000000000000000bb"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBlocks(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/utils/blocks/latest", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 42, body["number"])

	rec, _ = ts.do(t, http.MethodGet, "/api/utils/blocks/12", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/utils/blocks/xyz", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/utils/blocks/1000", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/api/events/ev-1", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = ts.do(t, http.MethodGet, "/api/events/", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := ts.do(t, http.MethodGet, "/api/events/ev-1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://s3/get/events/ev-1/x", body["imageUrl"])

	rec, _ = ts.do(t, http.MethodGet, "/api/events/organizer", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"organizerId":"u-1"`)

	rec, _ = ts.do(t, http.MethodPost, "/api/events/", `{"name":"Gig","date":"2030-01-01T20:00:00Z"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = ts.do(t, http.MethodPost, "/api/events/", `{"name":"Gig","date":"2030-01-01T20:00:00Z"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Gig", body["name"])

	rec, _ = ts.do(t, http.MethodDelete, "/api/events/ev-1", "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = ts.do(t, http.MethodPost, "/api/events/ev-1/image", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://s3/put", body["uploadUrl"])
}
