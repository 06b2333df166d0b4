// Package runtime wires storage, config, and log facades into a single-node
// ledger instance. It exposes Open/Close, basic health checks, and the Log
// facade used by the HTTP surface and the CLI.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	l, _ := rt.CreateLog("default", "orders", namespace.BackingBigArray, 0, 0)
//	pos, _ := l.Append(context.Background(), "order.created", []byte(`{"id":1}`))
//	sec, _ := l.Section(context.Background(), notification.CurrentID)
//	_ = pos
//	_ = sec
package runtime
