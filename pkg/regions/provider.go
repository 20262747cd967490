// Package regions resolves tenants to their regional store handles. Data
// residency rules pin each tenant to one geographic shard; everything above
// this package consumes handles and never constructs them.
package regions

import (
	"fmt"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/repositories"
)

// StoreHandle bundles the stores of one regional shard.
type StoreHandle struct {
	Region    string
	Records   repositories.RecordStore
	Documents repositories.DocumentStore
}

// Provider resolves a region code to that region's store handle.
type Provider interface {
	Resolve(regionCode string) (*StoreHandle, error)
}

// TenantDirectory maps a tenant to its home region. The real directory is a
// platform service; deployments configure a static map.
type TenantDirectory interface {
	RegionFor(tenantID string) (string, error)
}

// HandleResolver chains the tenant directory and the provider. Services
// depend on this one interface.
type HandleResolver interface {
	ForTenant(tenantID string) (*StoreHandle, error)
}

type handleResolver struct {
	provider  Provider
	directory TenantDirectory
}

// NewHandleResolver builds a HandleResolver from a provider and a directory.
func NewHandleResolver(provider Provider, directory TenantDirectory) HandleResolver {
	return &handleResolver{provider: provider, directory: directory}
}

func (r *handleResolver) ForTenant(tenantID string) (*StoreHandle, error) {
	region, err := r.directory.RegionFor(tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, apperrors.ErrStoreUnresolved)
	}
	handle, err := r.provider.Resolve(region)
	if err != nil {
		return nil, fmt.Errorf("tenant %s region %s: %w", tenantID, region, apperrors.ErrStoreUnresolved)
	}
	return handle, nil
}

// StaticProvider serves handles from a fixed region map.
type StaticProvider struct {
	handles map[string]*StoreHandle
}

// NewStaticProvider builds a provider over the given handles, keyed by
// region code.
func NewStaticProvider(handles map[string]*StoreHandle) *StaticProvider {
	return &StaticProvider{handles: handles}
}

var _ Provider = (*StaticProvider)(nil)

func (p *StaticProvider) Resolve(regionCode string) (*StoreHandle, error) {
	handle, ok := p.handles[regionCode]
	if !ok {
		return nil, fmt.Errorf("region %q: %w", regionCode, apperrors.ErrStoreUnresolved)
	}
	return handle, nil
}

// StaticDirectory maps tenants to regions from configuration, with an
// optional default region for tenants not listed.
type StaticDirectory struct {
	regions       map[string]string
	defaultRegion string
}

// NewStaticDirectory builds a directory from a tenant→region map. An empty
// defaultRegion means unlisted tenants fail to resolve.
func NewStaticDirectory(regions map[string]string, defaultRegion string) *StaticDirectory {
	return &StaticDirectory{regions: regions, defaultRegion: defaultRegion}
}

var _ TenantDirectory = (*StaticDirectory)(nil)

func (d *StaticDirectory) RegionFor(tenantID string) (string, error) {
	if region, ok := d.regions[tenantID]; ok {
		return region, nil
	}
	if d.defaultRegion != "" {
		return d.defaultRegion, nil
	}
	return "", fmt.Errorf("tenant %q has no region assignment", tenantID)
}
