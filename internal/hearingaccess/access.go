package hearingaccess

import (
	"context"
	"fmt"

	"gavel/internal/api"
	"gavel/internal/hearings"
	"gavel/internal/ipc"
	"gavel/internal/workers"
)

// Access provides hearing operations regardless of IPC or direct store backing.
type Access interface {
	Health(ctx context.Context) (api.HearingHealth, error)
	List(ctx context.Context, filter api.HearingFilter) ([]api.HearingItem, error)
	Describe(ctx context.Context, id int64) (*api.HearingItem, error)
	Retry(ctx context.Context, id int64) (*api.HearingItem, error)
	RetryAll(ctx context.Context) (int, error)
	Skip(ctx context.Context, id int64) (*api.HearingItem, error)
	Restore(ctx context.Context, id int64) (*api.HearingItem, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *hearings.Store) Access {
	return &storeAccess{service: api.NewHearingService(store)}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Health(context.Context) (api.HearingHealth, error) {
	resp, err := a.client.Status()
	if err != nil {
		return api.HearingHealth{}, err
	}
	return resp.Status.Hearings, nil
}

func (a *ipcAccess) List(_ context.Context, filter api.HearingFilter) ([]api.HearingItem, error) {
	resp, err := a.client.HearingList(ipc.HearingListRequest{
		Stage:  filter.Stage,
		Status: filter.Status,
		State:  filter.StateCode,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, id int64) (*api.HearingItem, error) {
	resp, err := a.client.HearingDescribe(id)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

func (a *ipcAccess) Retry(_ context.Context, id int64) (*api.HearingItem, error) {
	resp, err := a.client.HearingRetry(id)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

func (a *ipcAccess) RetryAll(context.Context) (int, error) {
	resp, err := a.client.HearingRetryAll()
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *ipcAccess) Skip(_ context.Context, id int64) (*api.HearingItem, error) {
	resp, err := a.client.HearingSkip(id)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

func (a *ipcAccess) Restore(_ context.Context, id int64) (*api.HearingItem, error) {
	resp, err := a.client.HearingRestore(id)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

type storeAccess struct {
	service *api.HearingService
}

func (a *storeAccess) Health(ctx context.Context) (api.HearingHealth, error) {
	return a.service.Health(ctx)
}

func (a *storeAccess) List(ctx context.Context, filter api.HearingFilter) ([]api.HearingItem, error) {
	return a.service.List(ctx, filter)
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.HearingItem, error) {
	item, err := a.service.Describe(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: hearing %d", workers.ErrNotFound, id)
	}
	return item, nil
}

func (a *storeAccess) Retry(ctx context.Context, id int64) (*api.HearingItem, error) {
	if err := a.service.Retry(ctx, id); err != nil {
		return nil, err
	}
	return a.Describe(ctx, id)
}

func (a *storeAccess) RetryAll(ctx context.Context) (int, error) {
	return a.service.RetryAll(ctx)
}

func (a *storeAccess) Skip(ctx context.Context, id int64) (*api.HearingItem, error) {
	if err := a.service.Skip(ctx, id); err != nil {
		return nil, err
	}
	return a.Describe(ctx, id)
}

func (a *storeAccess) Restore(ctx context.Context, id int64) (*api.HearingItem, error) {
	if err := a.service.Restore(ctx, id); err != nil {
		return nil, err
	}
	return a.Describe(ctx, id)
}
