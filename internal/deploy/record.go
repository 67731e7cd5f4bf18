package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Record is the YAML document written after a deployment.
type Record struct {
	Network    string       `yaml:"network"`
	ChainID    uint64       `yaml:"chain_id,omitempty"`
	Deployer   string       `yaml:"deployer"`
	DeployedAt time.Time    `yaml:"deployed_at"`
	Contracts  []RecordItem `yaml:"contracts"`

	Dependencies *DependencyAddresses `yaml:"dependencies,omitempty"`
	Warnings     []string             `yaml:"warnings,omitempty"`
}

// RecordItem is one contract in a Record.
type RecordItem struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address"`
	TxHash         string `yaml:"tx_hash"`
	Block          uint64 `yaml:"block"`
	Implementation string `yaml:"implementation,omitempty"`
}

func recordItem(d Deployment) RecordItem {
	return RecordItem{
		Name:    d.Contract,
		Address: d.Address.Hex(),
		TxHash:  d.TxHash.Hex(),
		Block:   d.Block,
	}
}

// NewProxyRecord describes a DeployAndInitialize result.
func NewProxyRecord(network string, chainID uint64, deployer string, at time.Time, res *ProxyResult) *Record {
	proxy := recordItem(res.Proxy)
	proxy.Implementation = res.Implementation.Address.Hex()
	deps := res.Dependencies

	return &Record{
		Network:      network,
		ChainID:      chainID,
		Deployer:     deployer,
		DeployedAt:   at.UTC(),
		Contracts:    []RecordItem{recordItem(res.Implementation), proxy},
		Dependencies: &deps,
		Warnings:     res.Verification.Warnings,
	}
}

// NewPlainRecord describes a DeployPlain result.
func NewPlainRecord(network string, chainID uint64, deployer string, at time.Time, d *Deployment) *Record {
	return &Record{
		Network:    network,
		ChainID:    chainID,
		Deployer:   deployer,
		DeployedAt: at.UTC(),
		Contracts:  []RecordItem{recordItem(*d)},
	}
}

// WriteFile writes r as YAML to path, creating parent directories.
func (r *Record) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal deployment record: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write deployment record: %w", err)
	}
	return nil
}
