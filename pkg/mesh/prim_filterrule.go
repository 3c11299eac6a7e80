package mesh

import (
	"context"
	"fmt"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
)

// filterRulePrimitive appends a rule to table/chain; Revert deletes exactly
// that rule by its kernel-assigned handle, captured when Apply's Flush
// echoes it back.
type filterRulePrimitive struct {
	table     string
	chain     string
	ns        *Namespace
	buildExrs func() []expr.Any
	detail    string

	rule *nftables.Rule
}

func newFilterRulePrimitive(table, chain string, ns *Namespace, detail string, build func() []expr.Any) *filterRulePrimitive {
	return &filterRulePrimitive{
		table:     table,
		chain:     chain,
		ns:        ns,
		buildExrs: build,
		detail:    detail,
	}
}

func (p *filterRulePrimitive) Apply(ctx context.Context) error {
	conn, closeConn, err := nftConnFor(p.ns)
	if err != nil {
		return wrapNFT(ErrFilterRule, err)
	}
	defer closeConn()

	tbl, ch, err := ensureTableAndChain(conn, p.table, p.chain)
	if err != nil {
		return wrapNFT(ErrFilterRule, err)
	}

	rule := &nftables.Rule{Table: tbl, Chain: ch, Exprs: p.buildExrs()}
	conn.AddRule(rule)

	if err := conn.Flush(); err != nil {
		return wrapNFT(ErrFilterRule, err)
	}
	p.rule = rule
	return nil
}

func (p *filterRulePrimitive) Revert(ctx context.Context) error {
	if p.rule == nil {
		return nil
	}
	conn, closeConn, err := nftConnFor(p.ns)
	if err != nil {
		return wrapNFT(ErrFilterRule, err)
	}
	defer closeConn()

	if err := conn.DelRule(p.rule); err != nil {
		return wrapNFT(ErrFilterRule, err)
	}
	if err := conn.Flush(); err != nil {
		return wrapNFT(ErrFilterRule, err)
	}
	return nil
}

func (p *filterRulePrimitive) String() string {
	return fmt.Sprintf("FilterRule(%s/%s: %s)", p.table, p.chain, p.detail)
}
