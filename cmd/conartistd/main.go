// Command conartistd wires the storage core's components together and
// drives them from a periodic tick. The network accept loops and
// protocol decoders that would feed the write façade are out of scope;
// this binary proves out the storage core end to end in isolation.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/jkluft/conartist/cmn/nlog"
	"github.com/jkluft/conartist/config"
	"github.com/jkluft/conartist/job"
	"github.com/jkluft/conartist/registry"
	"github.com/jkluft/conartist/request"
	"github.com/jkluft/conartist/stats"
	"github.com/jkluft/conartist/streammgr"
	"github.com/jkluft/conartist/sys"
)

func main() {
	app := cli.NewApp()
	app.Name = "conartistd"
	app.Usage = "ingest storage core daemon"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "/etc/conartist/conartist.json",
			Usage: "path to the JSON bootstrap configuration",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		nlog.Errorf("conartistd: %v", err)
		nlog.Flush(true)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	nlog.SetTitle("conartistd")
	sys.SetMaxProcs()

	opts, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	reg := registry.New(opts.Registry.Capacity, opts.Registry.ShardBits)
	_ = reg // resolved by the (out-of-scope) protocol decoders feeding write calls

	mgr := streammgr.New(opts.BasePath)
	if err := mgr.Scan(); err != nil {
		nlog.Warningf("conartistd: scan %s: %v", opts.BasePath, err)
	}

	jm := job.New(opts.JobManager.Workers, opts.JobManager.PendingCapacity, opts.JobManager.MaxChannels)
	pipeline, err := request.New(mgr, jm, opts.MappingFile,
		opts.JobManager.RequestsRingCap, opts.JobManager.RequestsRingCap, opts.JobManager.MappingsRingCap)
	if err != nil {
		return err
	}

	st := stats.New()

	cr := cron.New()
	if _, err := cr.AddFunc("@every 1s", func() {
		now := time.Now()
		pipeline.Update(now)
		if err := mgr.Update(now); err != nil {
			nlog.Warningf("conartistd: mgr.Update: %v", err)
		}
		st.JobLastLatencySecs.Set(float64(jm.LatencyNS()) / 1e9)
	}); err != nil {
		return err
	}
	cr.Start()
	defer cr.Stop()

	srv := newAdminServer(opts.AdminListen, st)
	go func() {
		if err := srv.ListenAndServe(opts.AdminListen); err != nil {
			nlog.Errorf("conartistd: admin listener: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	nlog.Infof("conartistd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.ShutdownWithContext(shutdownCtx)

	jm.Stop(true /*drain*/)
	if err := mgr.Destroy(); err != nil {
		nlog.Warningf("conartistd: destroy: %v", err)
	}
	nlog.Flush(true)
	return nil
}

// newAdminServer exposes /metrics (renders st's prometheus registry) and
// /healthz over fasthttp — the pack's lowest-ceremony HTTP server for a
// tiny listener, chosen over net/http per DESIGN.md.
func newAdminServer(_ string, st *stats.Stats) *fasthttp.Server {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(st.Registry(), promhttp.HandlerOpts{}))

	return &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			switch string(ctx.Path()) {
			case "/healthz":
				ctx.SetStatusCode(fasthttp.StatusOK)
				ctx.SetBodyString("ok")
			case "/metrics":
				metricsHandler(ctx)
			default:
				ctx.SetStatusCode(fasthttp.StatusNotFound)
			}
		},
	}
}
