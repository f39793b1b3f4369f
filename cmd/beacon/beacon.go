package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/irai/beacon"
	"github.com/irai/beacon/fastlog"
	"github.com/irai/beacon/raw"
)

const usage = `Usage:

    beacon [-d] send [-N] interface [message]

Send ethernet beacons on the specified interface, forever until killed.

Where:

    "-N" is the repeat rate in seconds, default 1.

    "message" is up to 1498 characters to be sent in the beacon payload. The
    default message is "beacon".

-or-

    beacon [-d] recv [-N] [regex]

Wait for an ethernet beacon on any interface, print the contained message and
exit 0, or exit 1 on timeout.

Where:

    -N is the number of seconds to wait, default 4. If 0 then never timeout,
    just print received beacons forever.

    "regex" is a regular expression to match in the beacon message. Non
    matching beacons are ignored. Only the part of the message that matches
    the regex will be printed (case-insensitive). The default regex is ".*$",
    i.e. match any beacon.

    -d logs ignored and malformed beacons to stderr.
`

const (
	defaultMessage = "beacon"
	defaultTimeout = time.Second * 4
)

var errUsage = errors.New("usage")

type sendArgs struct {
	period  time.Duration
	nic     string
	message string
}

type recvArgs struct {
	timeout time.Duration
	pattern string
}

// parseSeconds accepts the "-N" form used by both subcommands.
func parseSeconds(arg string) (time.Duration, bool, error) {
	if !strings.HasPrefix(arg, "-") || len(arg) < 2 {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(arg[1:], 10, 32)
	if err != nil {
		return 0, true, fmt.Errorf("%w: invalid seconds %q", errUsage, arg)
	}
	return time.Duration(n) * time.Second, true, nil
}

func parseSendArgs(args []string) (sendArgs, error) {
	a := sendArgs{message: defaultMessage}
	if len(args) > 0 {
		d, ok, err := parseSeconds(args[0])
		if err != nil {
			return a, err
		}
		if ok {
			a.period = d
			args = args[1:]
		}
	}
	if len(args) < 1 || len(args) > 2 {
		return a, errUsage
	}
	a.nic = args[0]
	if len(args) == 2 {
		a.message = args[1]
	}
	return a, nil
}

func parseRecvArgs(args []string) (recvArgs, error) {
	a := recvArgs{timeout: defaultTimeout, pattern: beacon.DefaultPattern}
	if len(args) > 0 {
		d, ok, err := parseSeconds(args[0])
		if err != nil {
			return a, err
		}
		if ok {
			a.timeout = d
			args = args[1:]
		}
	}
	if len(args) > 1 {
		return a, errUsage
	}
	if len(args) == 1 {
		a.pattern = args[0]
	}
	return a, nil
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	fs := flag.NewFlagSet("beacon", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	debug := fs.Bool("d", false, "log ignored beacons to stderr")
	if err := fs.Parse(os.Args[1:]); err != nil || fs.NArg() < 1 {
		exitUsage()
	}
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	switch fs.Arg(0) {
	case "send":
		args, err := parseSendArgs(fs.Args()[1:])
		if err != nil {
			exitUsage()
		}
		send(args, *debug)
	case "recv":
		args, err := parseRecvArgs(fs.Args()[1:])
		if err != nil {
			exitUsage()
		}
		os.Exit(recv(args, *debug))
	}
	exitUsage()
}

func exitUsage() {
	fmt.Fprint(os.Stderr, usage)
	os.Exit(1)
}

// send never returns; a failure terminates the process with status 1.
func send(args sendArgs, debug bool) {
	b, err := beacon.NewBroadcaster(beacon.BroadcastConfig{
		Period:  args.period,
		Message: []byte(args.message),
		Debug:   debug,
		Logger:  fastlog.Std,
	})
	if err != nil {
		log.Fatalf("invalid message: %s", err)
	}

	ifi, err := raw.LinkByName(args.nic)
	if err != nil {
		log.Fatalf("failed to open nic=%s: %s", args.nic, err)
	}
	conn, err := raw.Dial(ifi)
	if err != nil {
		log.Fatalf("socket failed: %s", err)
	}
	defer conn.Close()

	log.Debugf("sending beacon nic=%s index=%d mac=%s", ifi.Name, ifi.Index, ifi.HardwareAddr)
	err = b.Run(context.Background(), conn)
	log.Fatalf("beacon send failed: %s", err)
}

// recv returns the process exit status: 0 after a match, 1 on timeout.
func recv(args recvArgs, debug bool) int {
	l, err := beacon.NewListener(beacon.ListenConfig{
		Timeout: args.timeout,
		Pattern: args.pattern,
		Out:     os.Stdout,
		Debug:   debug,
		Logger:  fastlog.Std,
	})
	if err != nil {
		log.Fatalf("%s", err)
	}

	conn, err := raw.Listen()
	if err != nil {
		log.Fatalf("socket failed: %s", err)
	}
	defer conn.Close()

	if debug {
		if names, err := raw.Links(); err == nil {
			log.Debugf("listening on links=%s", strings.Join(names, ","))
		}
	}

	err = l.Run(context.Background(), conn)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, beacon.ErrTimeout):
		log.Debugf("no beacon received timeout=%s", args.timeout)
		return 1
	}
	log.Fatalf("beacon recv failed: %s", err)
	return 1
}
