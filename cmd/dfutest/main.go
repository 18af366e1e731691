// Command dfutest exercises the DFU controller against the simulated
// bootloader and offers helpers for images and sensor records.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/XC-/dfu"
	"github.com/XC-/dfu/gatt"
	"github.com/XC-/dfu/sensor"
	"github.com/XC-/dfu/sim"
)

func main() {
	app := cli.NewApp()
	app.Name = "dfutest"
	app.Usage = "run DFU test scenarios and inspect firmware images"
	app.Commands = []cli.Command{
		cli.Command{
			Name:  "run",
			Usage: "Run scenarios against the simulated bootloader",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Usage: "YAML config `FILE`",
				},
				cli.StringFlag{
					Name:  "image, i",
					Usage: "firmware image, raw binary or Intel HEX",
				},
				cli.StringSliceFlag{
					Name:  "scenario, s",
					Usage: "scenario to run, repeatable; all when omitted",
				},
				cli.StringFlag{
					Name:  "metrics-addr",
					Usage: "serve Prometheus metrics on `ADDR`",
				},
			},
			Action: runCommand,
		},
		cli.Command{
			Name:  "packetize",
			Usage: "Print the size, CRC and image packets of a firmware image",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "image, i",
					Usage: "firmware image, raw binary or Intel HEX",
				},
				cli.IntFlag{
					Name:  "packet-size",
					Value: dfu.PacketSize,
					Usage: "image packet length",
				},
			},
			Action: packetizeCommand,
		},
		cli.Command{
			Name:      "crc",
			Usage:     "Compute the image CRC of a file or hex string",
			ArgsUsage: "[HEX]",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "image, i",
					Usage: "firmware image, raw binary or Intel HEX",
				},
			},
			Action: crcCommand,
		},
		cli.Command{
			Name:      "decode",
			Usage:     "Decode a sensor record: csc, rsc, bpm, temp, sfloat, float or timestamp",
			ArgsUsage: "TYPE HEX",
			Action:    decodeCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand(c *cli.Context) (err error) {
	cfg, err := dfu.LoadConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	log, closer, err := dfu.NewLogger(cfg.Log)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	defer closer.Close()

	bin, err := loadImage(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	scenarios, err := selectScenarios(c.StringSlice("scenario"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	reg := prometheus.NewRegistry()
	metrics := dfu.NewMetrics(reg)
	if addr := c.String("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dev := sim.NewDevice(cfg.Sim, log)
	advData, scanData := dev.Advertisement()
	var adv gatt.Advertisement
	for _, b := range [][]byte{advData, scanData} {
		if err := adv.Unmarshal(b); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}
	log.WithFields(logrus.Fields{"name": adv.LocalName, "dfu": adv.Advertises(dfu.ServiceUUID)}).Info("simulated target advertising")
	d := &dfu.Driver{
		Dialer:   dev,
		Resetter: dev,
		Config:   cfg,
		Log:      log,
		Metrics:  metrics,
	}
	reports, err := d.RunAll(ctx, scenarios, bin)
	failed := 0
	for _, rep := range reports {
		printReport(rep)
		if !rep.Passed() {
			failed++
		}
	}
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	log.WithFields(logrus.Fields{"scenarios": len(reports), "failed": failed}).Info("done")
	if failed > 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d scenarios failed", failed, len(reports)), 1)
	}
	return nil
}

func printReport(rep *dfu.Report) {
	status := "PASS"
	if !rep.Passed() {
		status = "FAIL"
	}
	fmt.Printf("%s %s (%s)\n", status, rep.Scenario, rep.RunID)
	for _, s := range rep.Steps() {
		if s.Err != nil {
			fmt.Printf("  x %s: %v\n", s.Name, s.Err)
			continue
		}
		fmt.Printf("  ok %s (%v)\n", s.Name, s.Duration.Round(time.Microsecond))
	}
}

func selectScenarios(names []string) ([]dfu.Scenario, error) {
	if len(names) == 0 {
		return dfu.Scenarios(), nil
	}
	var out []dfu.Scenario
	for _, n := range names {
		sc, ok := dfu.LookupScenario(n)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", n)
		}
		out = append(out, sc)
	}
	return out, nil
}

func loadImage(c *cli.Context) ([]byte, error) {
	path := c.String("image")
	if path == "" {
		return nil, fmt.Errorf("missing --image")
	}
	return dfu.LoadImageFile(path)
}

func packetizeCommand(c *cli.Context) error {
	bin, err := loadImage(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	img, err := dfu.Segment(bin, c.Int("packet-size"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	fmt.Printf("size %d: % X\n", img.Size(), img.SizePacket)
	fmt.Printf("crc 0x%04X: % X\n", img.CRC(), img.CRCPacket)
	for i, p := range img.Packets {
		fmt.Printf("%5d: % X\n", i+1, p)
	}
	return nil
}

func crcCommand(c *cli.Context) error {
	var data []byte
	var err error
	if c.String("image") != "" {
		data, err = loadImage(c)
	} else {
		data, err = parseHex(c.Args().First())
	}
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	fmt.Printf("0x%04X\n", dfu.CRC16(data))
	return nil
}

func decodeCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: dfutest decode TYPE HEX", 2)
	}
	b, err := parseHex(c.Args().Get(1))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	var v fmt.Stringer
	switch c.Args().First() {
	case "csc":
		v, err = sensor.DecodeCscMeasurement(b, 0)
	case "rsc":
		v, err = sensor.DecodeRscMeasurement(b, 0)
	case "bpm":
		v, err = sensor.DecodeBloodPressureMeasurement(b, 0)
	case "temp":
		v, err = sensor.DecodeTemperatureMeasurement(b, 0)
	case "sfloat":
		v, err = sensor.DecodeSFloat(b, 0)
	case "float":
		v, err = sensor.DecodeFloat(b, 0)
	case "timestamp":
		v, err = sensor.DecodeTimestamp(b, 0)
	default:
		return cli.NewExitError(fmt.Sprintf("unknown record type %q", c.Args().First()), 2)
	}
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Println(v)
	return nil
}

// parseHex accepts "0a1b", "0A 1B", "0a:1b" and "0x0a,0x1b".
func parseHex(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ':' || r == ','
	})
	for i, f := range fields {
		fields[i] = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
	}
	return hex.DecodeString(strings.Join(fields, ""))
}
