package api

// TargetServiceKey is the metadata key internal callers set on every call
// through the gateway's RPC listener. Its value names the backend service
// ("sessions", "models", ...); the gateway rejects calls without it.
const TargetServiceKey = "x-target-service"
