package montage_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"

	"github.com/hyperflow-wms/mosaic/pkg/montage"
)

func TestResolve_DecimalPairBypassesNetwork(t *testing.T) {
	r := &montage.Resolver{BaseURL: "http://127.0.0.1:0", Client: resty.New()}
	ra, dec, err := r.Resolve(context.Background(), "56.5 23.75")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ra != 56.5 || dec != 23.75 {
		t.Errorf("ra, dec = %v, %v", ra, dec)
	}
}

func TestResolve_ObjectNameViaSesame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "# M17 #Q123")
		fmt.Fprintln(w, "%J 275.196290 -16.171530 = 18:20:47.10 -16:10:17.5")
		fmt.Fprintln(w, "%I.0 NAME Omega Nebula")
	}))
	defer srv.Close()

	r := &montage.Resolver{BaseURL: srv.URL, Client: resty.New()}
	ra, dec, err := r.Resolve(context.Background(), "M17")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ra != 275.196290 || dec != -16.171530 {
		t.Errorf("ra, dec = %v, %v", ra, dec)
	}
}

func TestResolve_NoPositionInReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "#!Sesame: nothing found")
	}))
	defer srv.Close()

	r := &montage.Resolver{BaseURL: srv.URL, Client: resty.New()}
	_, _, err := r.Resolve(context.Background(), "NotARealObject")
	if err == nil || !strings.Contains(err.Error(), `could not resolve object name "NotARealObject"`) {
		t.Errorf("err = %v", err)
	}
}

func TestResolve_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := &montage.Resolver{BaseURL: srv.URL, Client: resty.New()}
	if _, _, err := r.Resolve(context.Background(), "M17"); err == nil {
		t.Error("Resolve must fail on an error status")
	}
}
