// Package events fans committed mutations out to RabbitMQ and Elasticsearch.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tracker-api/internal/crud"
	"tracker-api/internal/esx"
	"tracker-api/internal/logx"
	"tracker-api/internal/mqx"
	"tracker-api/internal/resource"
	"tracker-api/internal/tracker"
)

var eventsLogger = logx.GetScope("events")

const hookTimeout = 3 * time.Second

// RoutingKey is "<resource>.<action>", e.g. "issues.created".
func RoutingKey(ev crud.Event) string { return ev.Resource + "." + ev.Action }

// Publisher forwards every event to the message broker.
type Publisher struct {
	mq mqx.Publisher
}

func NewPublisher(mq mqx.Publisher) *Publisher { return &Publisher{mq: mq} }

func (p *Publisher) AfterCommit(ctx context.Context, ev crud.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()
	if err := mqx.PublishJSON(ctx, p.mq, RoutingKey(ev), ev); err != nil {
		eventsLogger.Warn("publish failed", zap.String("key", RoutingKey(ev)), zap.Error(err))
	}
}

// IssueIndexer keeps the issue search index in step with the database.
type IssueIndexer struct {
	es    *esx.Client
	index string
}

func NewIssueIndexer(es *esx.Client, index string) *IssueIndexer {
	return &IssueIndexer{es: es, index: index}
}

func (x *IssueIndexer) AfterCommit(ctx context.Context, ev crud.Event) {
	if ev.Resource != tracker.Issues {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()
	var err error
	switch ev.Action {
	case crud.Created, crud.Updated:
		err = esx.IndexIssue(ctx, x.es, x.index, IssueDoc(ev.Record))
	case crud.Deleted:
		err = esx.DeleteIssue(ctx, x.es, x.index, ev.ID)
	}
	if err != nil {
		eventsLogger.Warn("index failed", zap.String("issue", ev.ID), zap.Error(err))
	}
}

// IssueDoc projects a stored issue row onto its search document.
func IssueDoc(rec resource.Record) esx.IssueDoc {
	doc := esx.IssueDoc{
		ID:          text(rec[resource.ColID]),
		WorkspaceID: text(rec[resource.ColWorkspaceID]),
		Name:        text(rec["name"]),
		Description: text(rec["description"]),
		Priority:    text(rec["priority"]),
		StateID:     text(rec["state_id"]),
		ProjectID:   text(rec["project_id"]),
	}
	if ts, ok := rec[resource.ColUpdatedAt].(time.Time); ok {
		doc.UpdatedAt = ts.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

func text(v any) string {
	s, _ := v.(string)
	return s
}
