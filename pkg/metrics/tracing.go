package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer times one method call as a segment of the New Relic
// transaction it was started in. A nil *MethodTracer is valid and does
// nothing, which is what TraceMethodCall returns outside a transaction.
type MethodTracer struct {
	txn *newrelic.Transaction
	seg *newrelic.Segment
}

// TraceMethodCall starts a "<struct> <method>" segment in the transaction
// carried by ctx.
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}

	return &MethodTracer{
		txn: txn,
		seg: txn.StartSegment(structOrPackageName + " " + methodName),
	}
}

func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	t.AddAttributes(map[string]interface{}{key: value})
}

func (t *MethodTracer) AddAttributes(attributes map[string]interface{}) {
	if t == nil {
		return
	}
	for key, value := range attributes {
		t.seg.AddAttribute(key, value)
	}
}

// OnError records a non-nil err against the transaction.
func (t *MethodTracer) OnError(err error) {
	if t != nil && err != nil {
		t.txn.NoticeError(err)
	}
}

func (t *MethodTracer) End() {
	if t != nil {
		t.seg.End()
	}
}
