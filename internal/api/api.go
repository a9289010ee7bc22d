// Package api is the command and query surface a launcher front end talks
// to. Requests are a closed set of types handled by one exhaustive switch.
package api

import (
	"context"
	"fmt"

	"github.com/teamcutter/patchr/internal/catalog"
	"github.com/teamcutter/patchr/internal/manager"
)

// Request is implemented only by the types in this package.
type Request interface {
	request()
}

// Info asks for the aggregate install status and the latest news.
type Info struct{}

// InstallGroup installs the missing artifacts of a patch group.
type InstallGroup struct {
	Group catalog.Group
}

type InstallCustom struct{}

type InstallAddOn struct{}

type PatchExecutable struct{}

// Reserve creates placeholders for reserved artifacts.
type Reserve struct{}

// Refresh drops cached remote answers.
type Refresh struct{}

func (Info) request()            {}
func (InstallGroup) request()    {}
func (InstallCustom) request()   {}
func (InstallAddOn) request()    {}
func (PatchExecutable) request() {}
func (Reserve) request()         {}
func (Refresh) request()         {}

// InfoResult answers Info.
type InfoResult struct {
	*manager.Status
	News string
}

// InstallResult answers the install requests. A nil Install means there was
// nothing to do.
type InstallResult struct {
	Install *manager.Install
}

type ReserveResult struct {
	Created []string
}

// Engine is the part of the manager the dispatcher drives.
type Engine interface {
	Status(ctx context.Context) (*manager.Status, error)
	LatestNews(ctx context.Context) (string, error)
	InstallPatchGroup(ctx context.Context, g catalog.Group) (*manager.Install, error)
	InstallCustomContent(ctx context.Context) (*manager.Install, error)
	InstallStoreAddOn(ctx context.Context) (*manager.Install, error)
	PatchExecutable() error
	EnsureReservedPlaceholders() ([]string, error)
	Refresh()
}

type Dispatcher struct {
	engine Engine
}

func NewDispatcher(engine Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Dispatch runs req. The concrete result type is fixed per request type:
// InfoResult, InstallResult, ReserveResult, or nil.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	switch r := req.(type) {
	case Info:
		status, err := d.engine.Status(ctx)
		if err != nil {
			return nil, err
		}
		news, err := d.engine.LatestNews(ctx)
		if err != nil {
			return nil, err
		}
		return InfoResult{Status: status, News: news}, nil

	case InstallGroup:
		inst, err := d.engine.InstallPatchGroup(ctx, r.Group)
		return InstallResult{Install: inst}, err

	case InstallCustom:
		inst, err := d.engine.InstallCustomContent(ctx)
		return InstallResult{Install: inst}, err

	case InstallAddOn:
		inst, err := d.engine.InstallStoreAddOn(ctx)
		return InstallResult{Install: inst}, err

	case PatchExecutable:
		return nil, d.engine.PatchExecutable()

	case Reserve:
		created, err := d.engine.EnsureReservedPlaceholders()
		return ReserveResult{Created: created}, err

	case Refresh:
		d.engine.Refresh()
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported request %T", req)
	}
}
