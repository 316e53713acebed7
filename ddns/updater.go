// Package ddns runs one dynamic DNS update cycle: resolve the public address,
// find the managed record and update it when the address changed.
package ddns

import (
	"context"
	"fmt"
	"net"

	"dpddns/config"
	"dpddns/dnspod"
	"dpddns/log"

	"go.uber.org/zap"
)

type IPResolver interface {
	Resolve(ctx context.Context) (net.IP, error)
}

// RecordService is implemented by *dnspod.Records.
type RecordService interface {
	ResolveDomain(ctx context.Context, name string) (dnspod.DomainInfo, error)
	ResolveTargetRecord(ctx context.Context, domainID, subdomain string) (dnspod.Record, error)
	UpdateRecord(ctx context.Context, u dnspod.RecordUpdate) error
}

type Updater struct {
	ip      IPResolver
	records RecordService
	domain  config.Domain

	state State
}

func NewUpdater(ip IPResolver, records RecordService, domain config.Domain) *Updater {
	return &Updater{ip: ip, records: records, domain: domain}
}

// State returns the state reached by the last Run.
func (u *Updater) State() State {
	return u.state
}

func (u *Updater) enter(ctx context.Context, s State) {
	u.state = s
	log.S(ctx).Debugw("enter state", "state", s)
}

func (u *Updater) fail(ctx context.Context, err error) (State, error) {
	log.S(ctx).Errorw("update failed", "failed_in", u.state, zap.Error(err))
	u.state = Failed
	return Failed, err
}

// Run performs one update cycle and returns Done or Failed. The record is
// only written when its value differs from the resolved address, keeping its
// line unchanged.
func (u *Updater) Run(ctx context.Context) (State, error) {
	elapsed := log.Elapsed("elapsed")
	ctx = log.SWith(ctx, log.Stage("update"), "domain", u.domain.Domain, "subdomain", u.domain.Subdomain)
	u.state = Idle

	u.enter(ctx, ResolvingIP)
	ip, err := u.ip.Resolve(ctx)
	if err != nil {
		return u.fail(ctx, fmt.Errorf("failed resolving self ip: %w", err))
	}

	u.enter(ctx, ResolvingDomain)
	domain, err := u.records.ResolveDomain(ctx, u.domain.Domain)
	if err != nil {
		return u.fail(ctx, err)
	}

	u.enter(ctx, ResolvingRecord)
	record, err := u.records.ResolveTargetRecord(ctx, domain.ID, u.domain.Subdomain)
	if err != nil {
		return u.fail(ctx, err)
	}

	u.enter(ctx, Comparing)
	if record.Value == ip.String() {
		log.S(ctx).Infow("IP didn't change, skip update", log.IP(ip), log.RecordID(record.ID), elapsed)
		u.enter(ctx, Done)
		return Done, nil
	}

	u.enter(ctx, Updating)
	err = u.records.UpdateRecord(ctx, dnspod.RecordUpdate{
		DomainID:  domain.ID,
		RecordID:  record.ID,
		SubDomain: u.domain.Subdomain,
		Line:      record.Line,
		Value:     ip.String(),
	})
	if err != nil {
		return u.fail(ctx, err)
	}

	log.S(ctx).Infow("record updated", log.IP(ip), "old_ip", record.Value, log.RecordID(record.ID), elapsed)
	u.enter(ctx, Done)
	return Done, nil
}
