package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/cortexflow/ragcore"
)

func AddEndpoints(group micro.Group, endpoints ragcore.EndpointSet) {
	group.AddEndpoint("embed", EmbedHandler(endpoints.Embed))
	group.AddEndpoint("ingest_document", IngestDocumentHandler(endpoints.IngestDocument))
	group.AddEndpoint("ingest_raw", IngestRawHandler(endpoints.IngestRaw))
	group.AddEndpoint("query", QueryHandler(endpoints.Query))
	group.AddEndpoint("chat", ChatHandler(endpoints.Chat))
	group.AddEndpoint("history", HistoryHandler(endpoints.History))
	group.AddEndpoint("clear_history", ClearHistoryHandler(endpoints.ClearHistory))
}
