package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// LoadKeymap reads a key pad map, one "keycode:value" per line. A value
// of zero or more is a note, a negative value is the controller -value.
func LoadKeymap(filename string) (map[int]int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseKeymap(file)
}

func ParseKeymap(r io.Reader) (map[int]int, error) {
	keymap := map[int]int{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		s := strings.Split(text, ":")
		if len(s) != 2 {
			return nil, fmt.Errorf("keymap line %d: expected keycode:value", line)
		}
		key, err := strconv.Atoi(strings.TrimSpace(s[0]))
		if err != nil {
			return nil, fmt.Errorf("keymap line %d: %w", line, err)
		}
		val, err := strconv.Atoi(strings.TrimSpace(s[1]))
		if err != nil {
			return nil, fmt.Errorf("keymap line %d: %w", line, err)
		}
		if key < 0 || key > 255 || val < -127 || val > 127 {
			return nil, fmt.Errorf("keymap line %d: %d:%d out of range", line, key, val)
		}
		keymap[key] = val
	}
	return keymap, scanner.Err()
}

// KeyPad reads a serial keyboard sending two bytes per key event: a status
// byte whose high bit marks a release, then the key code.
type KeyPad struct {
	port     io.Reader
	keymap   map[int]int
	controls *Controls
	log      *charmlog.Logger
	down     [256]bool
}

func NewKeyPad(port io.Reader, keymap map[int]int, controls *Controls, logger *charmlog.Logger) *KeyPad {
	return &KeyPad{port: port, keymap: keymap, controls: controls, log: logger.WithPrefix("keypad")}
}

// Run reads key events until ctx is done or the port fails.
func (p *KeyPad) Run(ctx context.Context) error {
	buf := make([]byte, 2)
	got := 0
	for ctx.Err() == nil {
		n, err := p.port.Read(buf[got:])
		if err != nil {
			return err
		}
		got += n
		if got < len(buf) {
			continue
		}
		got = 0
		p.handle(buf[0], buf[1])
	}
	return ctx.Err()
}

func (p *KeyPad) handle(status, code byte) {
	press := status>>7 == 0
	if p.down[code] && press {
		return
	}
	p.down[code] = press

	val, ok := p.keymap[int(code)]
	if !ok {
		if press {
			p.log.Debug("unassigned", "code", code)
		}
		return
	}
	if val < 0 {
		var v uint8
		if press {
			v = 127
		}
		p.controls.ControlChange(uint8(-val), v)
		return
	}
	if press {
		p.controls.NoteOn(uint8(val))
	}
}
