// Package vecmatch embeds the vecmatch matching engine in a Go program,
// without the HTTP service in front of it.
//
// Records are stored in Redis (search module required) or, with
// WithInMemoryIndex, in a process-local HNSW graph. Match responses are
// cached in Redis for five minutes and dropped when a write touches
// their partition. Responses to queries by record id are dropped on any
// write to the collection.
//
//	client, _ := vecmatch.New(ctx,
//	    vecmatch.WithRedis("localhost:6379", ""),
//	    vecmatch.WithEmbedder(myEmbedder),
//	    vecmatch.WithVectorDimensions(1536),
//	    vecmatch.WithCollection("profiles",
//	        vecmatch.Field{Name: "city", Type: vecmatch.FieldTag},
//	    ),
//	)
//	defer client.Close()
//
//	_, _, _ = client.Put(ctx, "profiles", vecmatch.Record{
//	    ID: "p1", Content: "Go engineer in Berlin",
//	    Attributes: map[string]any{"city": "berlin"},
//	})
//	res, _ := client.Match(ctx, "profiles", vecmatch.MatchRequest{Query: "golang developer"})
package vecmatch
