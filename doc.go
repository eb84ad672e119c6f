// Package chartcrafter provides a small chart hosting service: clients submit
// an ECharts-style chart configuration, the service renders it to SVG and PNG
// and stores the record and image in object storage with a bounded lifetime.
//
// Each chart gets a shareable page and a one-time deletion password that is
// returned only at creation. A configured master key unlocks listing every
// chart, viewing expired charts and deleting any chart.
//
// # Key Components
//
//   - ChartService: Create, view, delete, list and sweep charts
//   - ObjectStore: Interface for blob storage (blobstore, badgerstore, gcsstore)
//   - Renderer: Interface turning a chart config into SVG and PNG (render package)
//   - Authorizer: Master-key and deletion-password checks
//
// # Storage Layout
//
// A chart with id 20240301-<uuid> is stored as two blobs:
//
//	20240301-<uuid>.json   chart record
//	20240301-<uuid>.png    rendered image
//
// Records carry an argon2id hash of the deletion password, never the
// password itself. Records written by older deployments with a plaintext
// password field are still accepted for deletion.
//
// # Example Usage
//
//	service, err := chartcrafter.NewChartService(store, renderer, chartcrafter.ServiceConfig{
//	    MasterKey: os.Getenv("MASTER_KEY"),
//	    BaseURL:   "https://charts.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := service.Create(ctx, chartcrafter.CreateRequest{
//	    Name:        "Revenue",
//	    Description: "Monthly revenue",
//	    Data:        spec,
//	    ExpiresIn:   "7d",
//	})
//
// See the http package for the REST API and the cmd/chartcrafter command for
// the server binary.
package chartcrafter
