package modern

import "testing"

func TestLowerType_ServiceFoundAppendsTrailingDot(t *testing.T) {
	info := ServiceInfo{Labels: []string{"_http", "_tcp", "local"}}
	got, ok := LowerType(EventServiceFound, info)
	if !ok {
		t.Fatal("expected ok")
	}
	if want := "_http._tcp.local."; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLowerType_ServiceLostAppendsTrailingDot(t *testing.T) {
	info := ServiceInfo{Labels: []string{"_http", "_tcp", "local"}}
	got, ok := LowerType(EventServiceLost, info)
	if !ok {
		t.Fatal("expected ok")
	}
	if want := "_http._tcp.local."; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLowerType_ResolveSucceededPrependsLeadingDot(t *testing.T) {
	info := ServiceInfo{Labels: []string{"_http", "_tcp", "local"}}
	got, ok := LowerType(EventResolveServiceSucceeded, info)
	if !ok {
		t.Fatal("expected ok")
	}
	if want := "._http._tcp.local"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLowerType_OtherIsBare(t *testing.T) {
	info := ServiceInfo{Labels: []string{"_http", "_tcp", "local"}}
	got, ok := LowerType(EventOther, info)
	if !ok {
		t.Fatal("expected ok")
	}
	if want := "_http._tcp.local"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLowerType_RejectsMissingLocalSuffix(t *testing.T) {
	info := ServiceInfo{Labels: []string{"_http", "_tcp"}}
	if _, ok := LowerType(EventServiceFound, info); ok {
		t.Fatal("expected rejection for label sequence not ending in local")
	}
}

func TestLowerType_RejectsEmptyLabels(t *testing.T) {
	if _, ok := LowerType(EventServiceFound, ServiceInfo{}); ok {
		t.Fatal("expected rejection for empty label sequence")
	}
}

type fakeEngine struct {
	metrics AdvertiserMetrics
}

func (f *fakeEngine) RegisterListener(serviceType string, opts ListenerOptions, listener Listener) (Handle, error) {
	return "handle-" + serviceType, nil
}

func (f *fakeEngine) UnregisterListener(h Handle) error { return nil }

func (f *fakeEngine) AddService(instanceName, serviceType string, port int, txt []byte) (Handle, error) {
	return "handle-" + instanceName, nil
}

func (f *fakeEngine) RemoveService(h Handle) error { return nil }

func (f *fakeEngine) GetAdvertiserMetrics() AdvertiserMetrics { return f.metrics }

func TestAdapter_LowerLogsAndRejectsMalformedInfo(t *testing.T) {
	a := New(&fakeEngine{}, nil)
	if _, ok := a.Lower(EventServiceFound, 1, ServiceInfo{Labels: []string{"_http", "_tcp"}}); ok {
		t.Fatal("expected Lower to reject malformed label sequence")
	}
}

func TestAdapter_PassthroughVerbs(t *testing.T) {
	eng := &fakeEngine{metrics: AdvertiserMetrics{ActiveRegistrations: 2}}
	a := New(eng, nil)

	h, err := a.RegisterListener("_http._tcp", ListenerOptions{}, nil)
	if err != nil || h == nil {
		t.Fatalf("RegisterListener: %v %v", h, err)
	}
	if err := a.UnregisterListener(h); err != nil {
		t.Fatalf("UnregisterListener: %v", err)
	}

	sh, err := a.AddService("My Printer", "_ipp._tcp", 631, nil)
	if err != nil || sh == nil {
		t.Fatalf("AddService: %v %v", sh, err)
	}
	if err := a.RemoveService(sh); err != nil {
		t.Fatalf("RemoveService: %v", err)
	}

	if got := a.GetAdvertiserMetrics(); got.ActiveRegistrations != 2 {
		t.Fatalf("got metrics %+v", got)
	}
}
