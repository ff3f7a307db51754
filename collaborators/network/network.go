// Package network defines the narrow contract the engine consumes for
// netplan rendering, per spec §1 ("network (netplan) rendering ...
// consumed via narrow interfaces only"). The engine never interprets
// NetworkConfig.Raw; it only hands it to this interface.
package network

import (
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

// Renderer writes, generates, and applies netplan configuration.
type Renderer interface {
	Write(cfg *config.NetworkConfig) error
	Generate() error
	Apply() error
	Remove() error
}

// NoopRenderer logs each requested step and returns nil, since rendering
// netplan configuration is out of this engine's scope.
type NoopRenderer struct{}

func NewNoopRenderer() *NoopRenderer { return &NoopRenderer{} }

func (r *NoopRenderer) Write(cfg *config.NetworkConfig) error {
	logger.Logger().Infof("network: write requested (no-op)")
	return nil
}

func (r *NoopRenderer) Generate() error {
	logger.Logger().Infof("network: generate requested (no-op)")
	return nil
}

func (r *NoopRenderer) Apply() error {
	logger.Logger().Infof("network: apply requested (no-op)")
	return nil
}

func (r *NoopRenderer) Remove() error {
	logger.Logger().Infof("network: remove requested (no-op)")
	return nil
}
