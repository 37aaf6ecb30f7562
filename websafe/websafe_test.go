package websafe

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateURL_Schemes(t *testing.T) {
	if err := ValidateURL("ftp://example.com/file"); !errors.Is(err, ErrUnsafeScheme) {
		t.Errorf("ftp: got %v, want ErrUnsafeScheme", err)
	}
	if err := ValidateURL("file:///etc/passwd"); !errors.Is(err, ErrUnsafeScheme) {
		t.Errorf("file: got %v, want ErrUnsafeScheme", err)
	}
}

func TestValidateURL_PrivateIPs(t *testing.T) {
	for _, raw := range []string{
		"http://127.0.0.1/admin",
		"http://10.0.0.5/",
		"http://192.168.1.1/router",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]:8080/",
	} {
		if err := ValidateURL(raw); !errors.Is(err, ErrSSRF) {
			t.Errorf("%s: got %v, want ErrSSRF", raw, err)
		}
	}
}

func TestValidateURL_PublicIP(t *testing.T) {
	if err := ValidateURL("https://93.184.216.34/"); err != nil {
		t.Errorf("public IP: got %v, want nil", err)
	}
}

func TestValidateURL_NoHost(t *testing.T) {
	if err := ValidateURL("https:///path-only"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 10)
	if err != nil {
		t.Fatalf("under limit: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q", data)
	}

	if _, err := LimitedReadAll(strings.NewReader("0123456789abc"), 10); err == nil {
		t.Error("expected error over limit")
	}
}
