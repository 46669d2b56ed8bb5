// Package config holds the process configuration, read once at startup
// from environment variables.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Kind identifies which printer backend is active for the process lifetime.
type Kind string

const (
	KindTCP     Kind = "tcp"
	KindUSB     Kind = "usb"
	KindVirtual Kind = "virtual"
)

// Config is the full process configuration. Immutable once loaded.
type Config struct {
	Printer Printer
	Server  Server
}

// Printer selects and parameterizes the active backend. Only the section
// matching Kind is consulted by the selector.
type Printer struct {
	Kind    Kind
	TCP     TCP
	USB     USB
	Virtual Virtual
}

// TCP configures the raw-socket backend.
type TCP struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// USB configures the bulk-transfer backend. A zero ProductID matches the
// first attached device of the vendor.
type USB struct {
	VendorID  uint16
	ProductID uint16
}

// Virtual configures the HTTP-relay backend and its artifact directory.
type Virtual struct {
	DPMM          string
	LabelWidthMM  float64
	LabelHeightMM float64
	LabelIndex    int
	OutputFormat  string
	SaveDir       string
	BaseURL       string
}

// Server configures the HTTP listener.
type Server struct {
	Address        string
	AllowedOrigins []string
}

// Load reads configuration from environment variables, applying defaults.
// Malformed values fail here; semantic validation (unknown kind, missing
// required fields) is the backend selector's job.
func Load() (Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("PRINTER_KIND", "virtual")
	viper.SetDefault("PRINTER_TCP_TIMEOUT_MS", 5000)
	viper.SetDefault("PRINTER_USB_VENDOR_ID", "0x0a5f") // Zebra
	viper.SetDefault("PRINTER_USB_PRODUCT_ID", "")
	viper.SetDefault("PRINTER_DPMM", "8dpmm")
	viper.SetDefault("PRINTER_LABEL_WIDTH_MM", 101.6)
	viper.SetDefault("PRINTER_LABEL_HEIGHT_MM", 152.4)
	viper.SetDefault("PRINTER_LABEL_INDEX", 0)
	viper.SetDefault("PRINTER_OUTPUT_FORMAT", "png")
	viper.SetDefault("PRINTER_SAVE_DIR", "./labels")
	viper.SetDefault("PRINTER_BASE_URL", "http://api.labelary.com/v1/printers")
	viper.SetDefault("SERVER_ADDRESS", "localhost:9100")
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", "*")

	vendorID, err := parseID(viper.GetString("PRINTER_USB_VENDOR_ID"))
	if err != nil {
		return Config{}, fmt.Errorf("PRINTER_USB_VENDOR_ID: %w", err)
	}
	productID, err := parseID(viper.GetString("PRINTER_USB_PRODUCT_ID"))
	if err != nil {
		return Config{}, fmt.Errorf("PRINTER_USB_PRODUCT_ID: %w", err)
	}

	return Config{
		Printer: Printer{
			Kind: Kind(strings.ToLower(viper.GetString("PRINTER_KIND"))),
			TCP: TCP{
				Host:    viper.GetString("PRINTER_TCP_HOST"),
				Port:    viper.GetInt("PRINTER_TCP_PORT"),
				Timeout: time.Duration(viper.GetInt("PRINTER_TCP_TIMEOUT_MS")) * time.Millisecond,
			},
			USB: USB{
				VendorID:  vendorID,
				ProductID: productID,
			},
			Virtual: Virtual{
				DPMM:          viper.GetString("PRINTER_DPMM"),
				LabelWidthMM:  viper.GetFloat64("PRINTER_LABEL_WIDTH_MM"),
				LabelHeightMM: viper.GetFloat64("PRINTER_LABEL_HEIGHT_MM"),
				LabelIndex:    viper.GetInt("PRINTER_LABEL_INDEX"),
				OutputFormat:  viper.GetString("PRINTER_OUTPUT_FORMAT"),
				SaveDir:       viper.GetString("PRINTER_SAVE_DIR"),
				BaseURL:       viper.GetString("PRINTER_BASE_URL"),
			},
		},
		Server: Server{
			Address:        viper.GetString("SERVER_ADDRESS"),
			AllowedOrigins: splitOrigins(viper.GetString("SERVER_ALLOWED_ORIGINS")),
		},
	}, nil
}

// parseID parses a USB identifier given as hex, with or without the 0x
// prefix. Empty means "unset"; anything else must be valid hex so a typo
// fails at startup instead of surfacing as a device-not-found at print
// time.
func parseID(s string) (uint16, error) {
	raw := s
	s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "0x")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid usb identifier %q", raw)
	}
	return uint16(v), nil
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
