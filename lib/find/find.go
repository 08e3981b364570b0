// Package find locates the USB serial adapter for the GPIB controller by
// walking /sys/class/tty.
package find

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TTY describes one USB serial device.
type TTY struct {
	Dev       string // device name under /dev, e.g. "ttyUSB0"
	Path      string // resolved /sys path
	VendorID  string
	ProductID string
	Mfg       string
	Product   string
	Serial    string
}

func (t TTY) String() string {
	return fmt.Sprintf("dev %s vid/pid %s/%s mfg %q product %q serial %s",
		t.Dev, t.VendorID, t.ProductID, t.Mfg, t.Product, t.Serial)
}

// Filter narrows the candidate devices; the first match wins.
type Filter func(*TTY) bool

// GPIBFilter matches the FTDI-based Prologix GPIB-USB controller.
func GPIBFilter(t *TTY) bool {
	return strings.Contains(t.Mfg, "Prologix") ||
		strings.Contains(t.Product, "GPIB")
}

// SerialFilter matches a device by its USB serial string.
func SerialFilter(serial string) Filter {
	return func(t *TTY) bool { return t.Serial == serial }
}

// Find returns the /dev name of the single USB tty matching filter. With a
// nil filter it succeeds only when exactly one USB tty exists.
func Find(filter Filter) (string, error) {
	ttys, err := All()
	if err != nil {
		return "", err
	}
	if filter != nil {
		for i := range ttys {
			if filter(&ttys[i]) {
				return ttys[i].Dev, nil
			}
		}
		return "", errors.New("no matching ttys found")
	}
	switch len(ttys) {
	case 0:
		return "", errors.New("no usb ttys found")
	case 1:
		return ttys[0].Dev, nil
	}
	return "", fmt.Errorf("multiple usb ttys: %v", ttys)
}

// All lists the ttys backed by USB devices, reading each device's id and
// descriptor strings from its /sys entries.
func All() ([]TTY, error) {
	const sct = "/sys/class/tty/"
	entries, err := os.ReadDir(sct)
	if err != nil {
		return nil, err
	}
	var devs []TTY
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		abs, err := filepath.EvalSymlinks(filepath.Join(sct, e.Name()))
		if err != nil || !strings.Contains(abs, "usb") {
			continue
		}
		dev, err := filepath.EvalSymlinks(filepath.Join(abs, "device"))
		if err != nil {
			continue
		}
		// The descriptor files live one level above the interface dir.
		t := TTY{Dev: e.Name(), Path: abs}
		readUsbInfo(filepath.Dir(dev), &t)
		devs = append(devs, t)
	}
	return devs, nil
}

// readUsbInfo fills in the id and descriptor strings. Missing files are
// normal (not every device exposes a serial string); they stay empty.
func readUsbInfo(dir string, t *TTY) {
	read := func(name string) string {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
	t.ProductID = read("idProduct")
	t.VendorID = read("idVendor")
	t.Mfg = read("manufacturer")
	t.Product = read("product")
	t.Serial = read("serial")
}
