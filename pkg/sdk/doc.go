// Package neuralquery is a Go client for the NeuralQuery semantic search API.
//
//	client, _ := neuralquery.New("http://localhost:8000", neuralquery.WithAPIKey(key))
//	res, err := client.Search(ctx, "How do I optimize Docker images?", neuralquery.WithTopK(3))
//	if errors.Is(err, neuralquery.ErrUnavailable) {
//	    // index missing or backend down; run `neuralquery ingest`
//	}
//	for _, m := range res.Results {
//	    fmt.Println(m.ID, m.Score, m.Metadata["category"])
//	}
package neuralquery
