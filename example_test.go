package beacon_test

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	beacon "github.com/itzg/beacon-sender"
)

func Example_write() {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fmt.Println(string(body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	roots := x509.NewCertPool()
	roots.AddCert(server.Certificate())

	config := beacon.DefaultConfig()
	config.Endpoint = server.URL + "/beacon/v1/ingest-metrics"
	config.Token = "a-0123456789"
	config.SourceName = "edge-1"
	config.AutoTags = true

	output, _ := beacon.NewOutput(config, beacon.WithRootCAs(roots))

	entry, _ := output.Format("app.metrics", time.Unix(3, 1), beacon.Record{
		"host":    "web-1",
		"latency": 12,
		"ratio":   0.5,
	})
	result, _ := output.Write(context.Background(), "app.metrics", entry)
	fmt.Println(result.Outcome)

	//Output:
	//app.metrics,beacon-fluent-source=edge-1,host=web-1 latency=12i,ratio=0.5 3000000001
	//delivered
}
