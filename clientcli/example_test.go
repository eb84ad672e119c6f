package clientcli_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/clientcli"
)

func ExampleClient_Create() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(chartcrafter.CreateResult{
			ID:       "20240301-abc",
			URL:      "http://charts.test/chart/20240301-abc",
			Password: "Xy7pQ2rT9mKb",
		})
	}))
	defer server.Close()

	client, err := clientcli.New(&clientcli.Config{Endpoint: server.URL})
	if err != nil {
		fmt.Println(err)
		return
	}

	result, err := client.Create(context.Background(), chartcrafter.CreateRequest{
		Name: "Revenue",
		Data: json.RawMessage(`{"series":[{"type":"bar","data":[1,2,3]}]}`),
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	_ = clientcli.NewFormatter(false, true).FormatCreate(os.Stdout, result)
	// Output: http://charts.test/chart/20240301-abc
}
