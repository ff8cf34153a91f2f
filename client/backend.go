package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/JWambaugh/webull/pkg/ratelimit"
	"github.com/JWambaugh/webull/types"
)

// backend is the mode-specific half of the client. Live and paper accounts
// use different hosts, different account-id resolution and different
// trade-token rules; everything else is shared in core.
type backend interface {
	resolveAccount(ctx context.Context) error
	getAccount(ctx context.Context) (*types.AccountDetail, error)
	getPositions(ctx context.Context) ([]types.Position, error)
	placeOrder(ctx context.Context, req *types.PlaceOrderRequest) (string, error)
	cancelOrder(ctx context.Context, orderID string) error
	modifyOrder(ctx context.Context, orderID string, req *types.PlaceOrderRequest) error
	listOrders(ctx context.Context) ([]types.Order, error)
	listHistoryOrders(ctx context.Context, status string, count int) ([]types.Order, error)
}

type liveBackend struct {
	core *core
}

// resolveAccount picks the first entry of the real account list.
func (b *liveBackend) resolveAccount(ctx context.Context) error {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return err
	}
	resp, err := b.core.tr.do(ctx, http.MethodGet, b.core.endpoints.accountList(), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
	})
	if err != nil {
		return err
	}

	var out struct {
		Data []struct {
			SecAccountID types.Number `json:"secAccountId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil || len(out.Data) == 0 || out.Data[0].SecAccountID == "" {
		return types.ErrAccountNotFound
	}

	b.core.session.update(func(sess *Session) {
		sess.AccountID = out.Data[0].SecAccountID.String()
	})
	b.core.log.WithField("account_id", out.Data[0].SecAccountID.String()).Debug("resolved live account")
	return nil
}

func (b *liveBackend) getAccount(ctx context.Context) (*types.AccountDetail, error) {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return nil, err
	}
	if s.AccountID == "" {
		return nil, types.ErrAccountNotFound
	}

	var detail types.AccountDetail
	resp, err := b.core.tr.do(ctx, http.MethodGet, b.core.endpoints.account(s.AccountID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
		out:     &detail,
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}
	detail.FlattenMembers()
	return &detail, nil
}

func (b *liveBackend) getPositions(ctx context.Context) ([]types.Position, error) {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return nil, err
	}
	if s.AccountID == "" {
		return nil, types.ErrAccountNotFound
	}

	resp, err := b.core.tr.do(ctx, http.MethodGet, b.core.endpoints.positions(s.AccountID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}

	var out struct {
		Positions []types.Position `json:"positions"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

func (b *liveBackend) listOrders(ctx context.Context) ([]types.Order, error) {
	// The live account snapshot carries the open orders.
	detail, err := b.getAccount(ctx)
	if err != nil {
		return nil, err
	}
	return detail.OpenOrders, nil
}

type paperBackend struct {
	core *core
}

// resolveAccount picks the first entry of the simulated account list. The
// broker returns either a bare array or a data-wrapped one.
func (b *paperBackend) resolveAccount(ctx context.Context) error {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return err
	}
	resp, err := b.core.tr.do(ctx, http.MethodGet, b.core.endpoints.paperAccountList(), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
	})
	if err != nil {
		return err
	}

	type entry struct {
		ID types.Number `json:"id"`
	}
	var accounts []entry
	if err := json.Unmarshal(resp.Body(), &accounts); err != nil {
		var wrapped struct {
			Data []entry `json:"data"`
		}
		if err := json.Unmarshal(resp.Body(), &wrapped); err != nil {
			return types.ErrAccountNotFound
		}
		accounts = wrapped.Data
	}
	if len(accounts) == 0 || accounts[0].ID == "" {
		return types.ErrAccountNotFound
	}

	b.core.session.update(func(sess *Session) {
		sess.AccountID = accounts[0].ID.String()
	})
	b.core.log.WithField("account_id", accounts[0].ID.String()).Debug("resolved paper account")
	return nil
}

func (b *paperBackend) getAccount(ctx context.Context) (*types.AccountDetail, error) {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return nil, err
	}
	if s.AccountID == "" {
		return nil, types.ErrAccountNotFound
	}

	var detail types.AccountDetail
	resp, err := b.core.tr.do(ctx, http.MethodGet, b.core.endpoints.paperAccount(s.AccountID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
		out:     &detail,
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}
	detail.FlattenMembers()
	return &detail, nil
}

func (b *paperBackend) getPositions(ctx context.Context) ([]types.Position, error) {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return nil, err
	}
	if s.AccountID == "" {
		return nil, types.ErrAccountNotFound
	}

	resp, err := b.core.tr.do(ctx, http.MethodGet, b.core.endpoints.paperPositions(s.AccountID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}

	var out struct {
		Data []types.Position `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (b *paperBackend) listOrders(ctx context.Context) ([]types.Order, error) {
	// The paper account snapshot does not carry open orders; filter the
	// history for working ones instead.
	all, err := b.listHistoryOrders(ctx, "All", 100)
	if err != nil {
		return nil, err
	}
	open := make([]types.Order, 0, len(all))
	for _, o := range all {
		if !o.Status.IsTerminal() {
			open = append(open, o)
		}
	}
	return open, nil
}
