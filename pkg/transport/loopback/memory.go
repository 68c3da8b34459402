// Package loopback is a same-host stand-in for the RDMA verbs and CM
// layers, built from TCP loopback connections plus a raw-fd toolkit for
// socket tuning (golang.org/x/sys/unix, github.com/higebu/netfd) and
// pkg/tcpinfo for TCP_INFO collection. It reproduces the reliable, ordered, explicit
// post/poll semantics the engine in pkg/rdmaqueue depends on without
// requiring real RDMA hardware.
package loopback

import "github.com/runZeroInc/rdmaqueue/pkg/transport"

type regMemory struct {
	buf []byte
}

func newRegMemory(size uint32) *regMemory {
	return &regMemory{buf: make([]byte, size)}
}

func (m *regMemory) Bytes() []byte {
	return m.buf
}

func (m *regMemory) Capacity() uint32 {
	return uint32(len(m.buf))
}

type protectionDomain struct{}

// NewProtectionDomain creates a protection domain that registers
// fixed-capacity buffers, mirroring ibv_reg_mr against a single PD for
// every buffer in the engine's memory pool.
func NewProtectionDomain() transport.ProtectionDomain {
	return &protectionDomain{}
}

func (p *protectionDomain) AllocateMemory(size uint32) (transport.RegisteredMemory, error) {
	return newRegMemory(size), nil
}

func (p *protectionDomain) Close() error {
	return nil
}
