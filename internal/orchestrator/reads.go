package orchestrator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/ledger"
	"github.com/dmitrijs2005/ticketkeeper/internal/ticketnft"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// Ticket reads one ticket's current state.
func (o *Orchestrator) Ticket(ctx context.Context, tokenID *big.Int) (*ticketnft.TicketRecord, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id must be a non-negative integer", common.ErrorInvalidArgument)
	}
	rec, err := o.contract.Record(ctx, tokenID)
	if err != nil {
		if rej, ok := ledger.IsRejected(err); ok {
			return nil, fmt.Errorf("ticket %s: %w: %s", tokenID, common.ErrorNotFound, rej.Reason)
		}
		return nil, err
	}
	return rec, nil
}

// Tickets reads every token id below totalSupply.
func (o *Orchestrator) Tickets(ctx context.Context) ([]*ticketnft.TicketRecord, error) {
	supply, err := o.contract.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	if !supply.IsInt64() {
		return nil, fmt.Errorf("total supply %s out of range", supply)
	}

	out := make([]*ticketnft.TicketRecord, supply.Int64())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.readConcurrency)
	for i := range out {
		i := i
		g.Go(func() error {
			rec, err := o.contract.Record(gctx, big.NewInt(int64(i)))
			if err != nil {
				return fmt.Errorf("ticket %d: %w", i, err)
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MintedTo lists every ticket ever minted to owner. Logs that fail to
// decode are skipped and counted.
func (o *Orchestrator) MintedTo(ctx context.Context, owner ethcommon.Address) ([]ticketnft.MintedEvent, int, error) {
	logs, err := o.gw.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		Addresses: []ethcommon.Address{o.contract.Address()},
		Topics: [][]ethcommon.Hash{
			{ticketnft.Topic(ticketnft.EventMinted)},
			{ethcommon.BytesToHash(owner.Bytes())},
		},
	})
	if err != nil {
		return nil, 0, err
	}

	events, skipped := o.decoder.DecodeAll(logs)
	out := make([]ticketnft.MintedEvent, 0, len(events))
	for _, ev := range events {
		m, ok := ev.(ticketnft.MintedEvent)
		if !ok {
			skipped++
			continue
		}
		out = append(out, m)
	}
	if skipped > 0 {
		o.log.Warn(ctx, "skipped undecodable mint logs", "wallet", owner.Hex(), "skipped", skipped)
	}
	return out, skipped, nil
}

func (o *Orchestrator) LatestBlock(ctx context.Context) (*ledger.BlockInfo, error) {
	return o.gw.LatestBlock(ctx)
}

func (o *Orchestrator) Block(ctx context.Context, number uint64) (*ledger.BlockInfo, error) {
	return o.gw.Block(ctx, number)
}
