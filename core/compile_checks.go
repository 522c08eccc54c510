package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ ConsentStateStore = (*MemoryConsentStateStore)(nil)
	_ CustomerLocker    = (*MemoryCustomerLocker)(nil)
	_ MetricsRecorder   = (*NopMetricsRecorder)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
