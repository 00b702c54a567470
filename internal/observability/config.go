package observability

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprofTrace bool
	// EnableTracing exports tick and HTTP spans over OTLP/gRPC.
	EnableTracing bool
	// OTLPEndpoint is host:port of the collector. Empty uses the exporter
	// default or OTEL_EXPORTER_OTLP_ENDPOINT.
	OTLPEndpoint string
	OTLPInsecure bool
	ServiceName  string
}

const DefaultServiceName = "terrafort-server"
