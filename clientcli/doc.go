// Package clientcli provides a client library for a Chart Crafter server.
//
// It covers chart creation, the master-key listing, deletion by master key
// or deletion password, pruning of expired charts, image download and the
// status report. Profiles in a YAML file hold endpoints and master keys for
// several servers.
//
// # Basic Usage
//
//	client, err := clientcli.New(&clientcli.Config{
//		Endpoint:  "http://localhost:3000",
//		MasterKey: os.Getenv("CHARTCRAFTER_MASTER_KEY"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	created, err := client.Create(ctx, chartcrafter.CreateRequest{
//		Name: "Revenue",
//		Data: spec,
//	})
//	fmt.Println(created.URL, created.Password)
//
// # Pruning
//
// Prune lists every chart with the master key and deletes those whose
// expiry is at or before the client's clock. Failures are recorded per
// chart and do not stop the run:
//
//	result, err := client.Prune(ctx)
//	fmt.Printf("deleted %d of %d\n", result.Deleted, result.Expired)
//
// # Errors
//
// Non-success responses are returned as *APIError carrying the server's
// error code. Compare with errors.Is against ErrNotFound, ErrUnauthorized,
// ErrBadRequest or ErrRateLimited.
package clientcli
