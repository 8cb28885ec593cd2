package services

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"fmt"
	"math/big"
	"sync"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/dbx"
	"github.com/dmitrijs2005/ticketkeeper/internal/ledger"
	"github.com/dmitrijs2005/ticketkeeper/internal/orchestrator"
	"github.com/dmitrijs2005/ticketkeeper/internal/qrauth"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// --- repositories ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	nextID int
	err    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("u-%d", f.nextID)
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) SetPhoneVerified(_ context.Context, id string, verified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PhoneVerified = verified
	return nil
}

type fakeEventsRepo struct {
	byID   map[string]*models.Event
	nextID int
}

func newFakeEventsRepo() *fakeEventsRepo {
	return &fakeEventsRepo{byID: map[string]*models.Event{}}
}

func (f *fakeEventsRepo) Create(_ context.Context, e *models.Event) (*models.Event, error) {
	f.nextID++
	e.ID = fmt.Sprintf("ev-%d", f.nextID)
	cp := *e
	f.byID[e.ID] = &cp
	return e, nil
}

func (f *fakeEventsRepo) GetByID(_ context.Context, id string) (*models.Event, error) {
	e, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEventsRepo) List(context.Context) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range f.byID {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventsRepo) ListByOrganizer(_ context.Context, organizerID string) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range f.byID {
		if e.OrganizerID == organizerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventsRepo) Update(_ context.Context, e *models.Event) error {
	if _, ok := f.byID[e.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *e
	f.byID[e.ID] = &cp
	return nil
}

func (f *fakeEventsRepo) SetImageKey(_ context.Context, id, key string) error {
	e, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	e.ImageKey = key
	return nil
}

func (f *fakeEventsRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	e *fakeEventsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), e: newFakeEventsRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) Events(dbx.DBTX) events.Repository           { return m.e }

// --- sms ---

type fakeVerifier struct {
	sentTo string
	code   string
	err    error
}

func (f *fakeVerifier) Send(_ context.Context, phone string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.sentTo = phone
	return true, nil
}

func (f *fakeVerifier) Check(_ context.Context, phone, code string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return phone == f.sentTo && code == f.code, nil
}

// --- ledger ---

// fakeLedger records the signer of each call and hands back canned results.
type fakeLedger struct {
	signers []ethcommon.Address
	keys    []*ecdsa.PrivateKey
	calls   []string
	tickets map[string]*ticketnft.TicketRecord
	err     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{tickets: map[string]*ticketnft.TicketRecord{}}
}

func (f *fakeLedger) record(name string, key *ecdsa.PrivateKey) (*orchestrator.Result, error) {
	f.calls = append(f.calls, name)
	if key != nil {
		f.signers = append(f.signers, crypto.PubkeyToAddress(key.PublicKey))
		f.keys = append(f.keys, key)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Result{TxHash: ethcommon.HexToHash("0x01"), BlockNumber: 1}, nil
}

func (f *fakeLedger) Mint(_ context.Context, to ethcommon.Address, info string) (*orchestrator.Result, error) {
	r, err := f.record("mint:"+to.Hex()+":"+info, nil)
	if err == nil {
		r.Minted = &ticketnft.MintedEvent{To: to, TokenID: big.NewInt(0), EventInfo: info}
	}
	return r, err
}

func (f *fakeLedger) MintAndList(_ context.Context, to ethcommon.Address, info string, price *big.Int) (*orchestrator.Result, error) {
	return f.record("mintAndList:"+to.Hex()+":"+info+":"+price.String(), nil)
}

func (f *fakeLedger) List(_ context.Context, key *ecdsa.PrivateKey, id, price *big.Int) (*orchestrator.Result, error) {
	return f.record("list:"+id.String()+":"+price.String(), key)
}

func (f *fakeLedger) Unlist(_ context.Context, key *ecdsa.PrivateKey, id *big.Int) (*orchestrator.Result, error) {
	return f.record("unlist:"+id.String(), key)
}

func (f *fakeLedger) Buy(_ context.Context, key *ecdsa.PrivateKey, id *big.Int) (*orchestrator.Result, error) {
	return f.record("buy:"+id.String(), key)
}

func (f *fakeLedger) Transfer(_ context.Context, from, to ethcommon.Address, id *big.Int) (*orchestrator.Result, error) {
	return f.record("transfer:"+from.Hex()+":"+to.Hex()+":"+id.String(), nil)
}

func (f *fakeLedger) Submit(_ context.Context, key *ecdsa.PrivateKey, op ticketnft.Operation) (*orchestrator.Result, error) {
	return f.record("submit:"+string(op.Kind()), key)
}

func (f *fakeLedger) Ticket(_ context.Context, id *big.Int) (*ticketnft.TicketRecord, error) {
	t, ok := f.tickets[id.String()]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (f *fakeLedger) Tickets(context.Context) ([]*ticketnft.TicketRecord, error) {
	var out []*ticketnft.TicketRecord
	for _, t := range f.tickets {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeLedger) MintedTo(_ context.Context, owner ethcommon.Address) ([]ticketnft.MintedEvent, int, error) {
	return []ticketnft.MintedEvent{{To: owner, TokenID: big.NewInt(3), EventInfo: "ev-1"}}, 1, nil
}

func (f *fakeLedger) LatestBlock(context.Context) (*ledger.BlockInfo, error) {
	return &ledger.BlockInfo{Number: 9}, nil
}

func (f *fakeLedger) Block(_ context.Context, n uint64) (*ledger.BlockInfo, error) {
	return &ledger.BlockInfo{Number: n}, nil
}

type fakeQR struct {
	holder    ethcommon.Address
	organizer ethcommon.Address
	verified  []qrauth.Payload
	err       error
}

func (f *fakeQR) Generate(holder *ecdsa.PrivateKey, id *big.Int) (*qrauth.Payload, error) {
	f.holder = crypto.PubkeyToAddress(holder.PublicKey)
	return &qrauth.Payload{TokenID: id, Nonce: 1, Expiration: 2, Signature: make([]byte, 65)}, nil
}

func (f *fakeQR) Verify(_ context.Context, organizer *ecdsa.PrivateKey, p qrauth.Payload) (*orchestrator.Result, error) {
	f.organizer = crypto.PubkeyToAddress(organizer.PublicKey)
	f.verified = append(f.verified, p)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Result{Kind: ticketnft.KindValidateWithSignature}, nil
}
