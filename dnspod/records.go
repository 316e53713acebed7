package dnspod

import (
	"context"
	"fmt"

	"dpddns/log"

	"go.uber.org/zap"
)

const (
	OpDomainInfo = "Domain.Info"
	OpRecordList = "Record.List"
	OpRecordDdns = "Record.Ddns"

	TypeA = "A"
)

type DomainInfo struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type Record struct {
	ID    string `mapstructure:"id"`
	Type  string `mapstructure:"type"`
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
	Line  string `mapstructure:"line"`
}

// RecordUpdate is the input of Record.Ddns. Line must be the record's
// existing line, or the provider rejects or misroutes the update.
type RecordUpdate struct {
	DomainID  string
	RecordID  string
	SubDomain string
	Line      string
	Value     string
}

// Caller is the API call surface Records needs; *Client implements it.
type Caller interface {
	Call(ctx context.Context, op string, params Params) (Payload, error)
}

// Records resolves the managed domain and its address record.
type Records struct {
	api Caller
}

func NewRecords(api Caller) *Records {
	return &Records{api: api}
}

func (r *Records) ResolveDomain(ctx context.Context, name string) (DomainInfo, error) {
	ctx = log.SWith(ctx, "domain", name)

	payload, err := r.api.Call(ctx, OpDomainInfo, Params{"domain": name})
	if err != nil {
		return DomainInfo{}, fmt.Errorf("failed get domain info: %w", err)
	}

	var info DomainInfo
	if _, ok := payload["domain"]; ok {
		if err := payload.Decode("domain", &info); err != nil {
			log.S(ctx).Warnw("bad domain object", zap.Error(err))
		}
	}

	if info.ID == "" {
		log.S(ctx).Errorw("domain not found in response")
		return DomainInfo{}, &NotFoundError{Kind: "domain", Name: name}
	}

	log.S(ctx).Debugw("found domain", log.DomainID(info.ID))
	return info, nil
}

// ResolveTargetRecord returns the first A record named subdomain, in the order
// the provider listed them.
func (r *Records) ResolveTargetRecord(ctx context.Context, domainID, subdomain string) (Record, error) {
	ctx = log.SWith(ctx, log.DomainID(domainID), "subdomain", subdomain)

	payload, err := r.api.Call(ctx, OpRecordList, Params{
		"domain_id":  domainID,
		"sub_domain": subdomain,
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed list records: %w", err)
	}

	var records []Record
	if _, ok := payload["records"]; ok {
		if err := payload.Decode("records", &records); err != nil {
			log.S(ctx).Errorw("bad record list", zap.Error(err))
			return Record{}, fmt.Errorf("bad record list: %w", err)
		}
	}

	var target *Record
	var ignored []string
	for i := range records {
		if records[i].Type != TypeA || records[i].Name != subdomain {
			continue
		}
		if target == nil {
			target = &records[i]
		} else {
			ignored = append(ignored, records[i].ID)
		}
	}

	if target == nil {
		log.S(ctx).Errorw("no target record found", "records", records)
		return Record{}, &NotFoundError{Kind: "record", Name: subdomain, Records: records}
	}

	if len(ignored) > 0 {
		log.S(ctx).Warnw("multiple A records match, using the first", log.RecordID(target.ID), "ignored", ignored)
	}

	log.S(ctx).Debugw("found record", log.RecordID(target.ID), "value", target.Value, "line", target.Line)
	return *target, nil
}

func (r *Records) UpdateRecord(ctx context.Context, u RecordUpdate) error {
	ctx = log.SWith(ctx, log.DomainID(u.DomainID), log.RecordID(u.RecordID), "value", u.Value)

	_, err := r.api.Call(ctx, OpRecordDdns, Params{
		"domain_id":   u.DomainID,
		"record_id":   u.RecordID,
		"sub_domain":  u.SubDomain,
		"record_line": u.Line,
		"value":       u.Value,
	})
	if err != nil {
		return fmt.Errorf("failed update record: %w", err)
	}

	log.S(ctx).Debugw("record updated")
	return nil
}
