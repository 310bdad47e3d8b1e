// Command xsshd is a demo SSH-2 server built on the libssh protocol core:
// it accepts connections, runs the handshake, and on a pty-req channel
// request allocates a PTY and runs /bin/sh on it with the server
// process's own credentials. Shell and exec requests get the default
// reply. Flag layout and syslog wiring are grounded on xsd/xsd.go.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"blitter.com/go/goutmp"
	"github.com/kr/pty"
	"github.com/mattn/go-isatty"

	"github.com/rgo/libssh"
	"github.com/rgo/libssh/authutil"
	"github.com/rgo/libssh/logger"
)

var Log *logger.Writer

func main() {
	var vopt bool
	var dbg bool
	var laddr string
	var port int
	var kcpMode bool
	var rsaKeyPath, dsaKeyPath string

	flag.BoolVar(&vopt, "v", false, "show version")
	flag.StringVar(&laddr, "l", "0.0.0.0", "bind address")
	flag.IntVar(&port, "p", 22, "bind port")
	flag.BoolVar(&kcpMode, "K", false, "use KCP (github.com/xtaci/kcp-go) reliable UDP instead of TCP")
	flag.StringVar(&rsaKeyPath, "rsa-key", "", "path to RSA host key PEM")
	flag.StringVar(&dsaKeyPath, "dsa-key", "", "path to DSA host key PEM")
	flag.BoolVar(&dbg, "d", false, "debug logging")
	flag.Parse()

	if vopt {
		fmt.Printf("xsshd version %s\n", libssh.Version)
		os.Exit(0)
	}

	Log, _ = logger.New(logger.LOG_DAEMON|logger.LOG_DEBUG|logger.LOG_NOTICE|logger.LOG_ERR, "xsshd") // nolint: gosec
	if dbg {
		log.SetOutput(Log)
	} else {
		log.SetOutput(ioutil.Discard)
	}

	l := libssh.NewListener()
	l.BindAddr = laddr
	l.Port = port
	if kcpMode {
		l.Proto = "kcp"
	}
	if rsaKeyPath != "" {
		pemBytes, err := ioutil.ReadFile(rsaKeyPath)
		if err != nil {
			log.Fatalf("reading RSA host key: %v", err)
		}
		l.HostKeyPaths["ssh-rsa"] = pemBytes
	}
	if dsaKeyPath != "" {
		pemBytes, err := ioutil.ReadFile(dsaKeyPath)
		if err != nil {
			log.Fatalf("reading DSA host key: %v", err)
		}
		l.HostKeyPaths["ssh-dss"] = pemBytes
	}

	if err := l.Listen(); err != nil {
		log.Fatal(err)
	}
	defer l.Close() // nolint: errcheck

	exitCh := make(chan os.Signal, 1)
	signal.Notify(exitCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go func() {
		sig := <-exitCh
		logger.LogNotice(fmt.Sprintf("[got signal: %s, shutting down]", sig)) // nolint: errcheck
		l.Close()                                                            // nolint: errcheck
		os.Exit(0)
	}()

	log.Printf("Serving on %s:%d\n", laddr, port)
	authCtx := authutil.NewCtx()
	for {
		s, err := l.Accept()
		if err != nil {
			log.Printf("Accept() error: %v\n", err)
			continue
		}
		go serve(s, authCtx)
	}
}

func serve(s *libssh.Session, authCtx *authutil.Ctx) {
	if err := libssh.HandleKeyExchange(s); err != nil {
		log.Printf("handshake failed: %v\n", err)
		return
	}

	libssh.SetMessageCallback(s, func(sess *libssh.Session, m *libssh.Message) int {
		switch m.Kind {
		case libssh.KindAuthRequest:
			return handleAuth(sess, m, authCtx)
		case libssh.KindChannelRequest:
			return handleChannelRequest(sess, m)
		default:
			return 1 // default reply is fine for service/channel-open
		}
	}, nil)

	for s.Alive() {
		if err := libssh.ExecuteMessageCallbacks(s); err != nil {
			log.Printf("session ended: %v\n", err)
			return
		}
	}
}

func handleAuth(s *libssh.Session, m *libssh.Message, authCtx *authutil.Ctx) int {
	if m.Password() == "" {
		return 1 // no password submitted; let the default reply run
	}
	if authutil.VerifyBcryptFile(authCtx, "/etc/xsshd.passwd", m.User(), m.Password()) {
		_ = libssh.AuthReplySuccess(s, false)
		return 0
	}
	return 1
}

func handleChannelRequest(s *libssh.Session, m *libssh.Message) int {
	term, cols, rows := m.PTYFields()
	if term == "" {
		return 1
	}
	pxWidth, pxHeight := m.PTYPixelSize()
	cmd := m.ExecCommand()
	if cmd == "" {
		cmd = "/bin/sh"
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		log.Printf("pty.Open: %v\n", err)
		return 1
	}
	defer tty.Close()  // nolint: errcheck
	defer ptmx.Close() // nolint: errcheck

	if cols > 0 && rows > 0 {
		_ = pty.Setsize(ptmx, &pty.Winsize{
			Rows: uint16(rows), Cols: uint16(cols),
			X: uint16(pxWidth), Y: uint16(pxHeight),
		})
	}

	if isatty.IsTerminal(tty.Fd()) {
		ptsName, err := ptsNameOf(tty.Name())
		if err == nil {
			hname := s.Conn().RemoteAddr().String()
			utmpx := goutmp.Put_utmp(m.User(), ptsName, hname)
			defer func() { goutmp.Unput_utmp(utmpx) }()
			goutmp.Put_lastlog_entry("xsshd", m.User(), ptsName, hname)
		}
	}

	// ptmx is bridged to channel data reads/writes once those exist on
	// Session; the core's callback surface stops at request dispatch
	// (see consts.go), so this demo only proves the command actually
	// runs under the PTY, not a full interactive session yet.
	c := exec.Command(cmd) // nolint: gosec
	c.Env = append(os.Environ(), "TERM="+term)
	c.Stdin = tty
	c.Stdout = tty
	c.Stderr = tty
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := c.Start(); err != nil {
		log.Printf("starting %s: %v\n", cmd, err)
		return 1
	}
	if err := c.Wait(); err != nil {
		log.Printf("%s exited: %v\n", cmd, err)
	}
	return 0
}

// ptsNameOf reports the pts device name goutmp expects (it wants the
// bare name, e.g. "pts/3", not a full /dev/pts/3 path).
func ptsNameOf(devPath string) (string, error) {
	if len(devPath) > len("/dev/") && devPath[:5] == "/dev/" {
		return devPath[5:], nil
	}
	return devPath, nil
}
