package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
)

// Fairness derives every random outcome in the engine from
// HMAC-SHA256(serverSeed, "<game>:<clientSeed>:<nonce>"), so a settled game
// can be re-derived by anyone holding both seeds. The server seed hash is
// published up front; the seed itself is revealed on rotation.
type Fairness struct {
	serverSeed string
}

func NewFairness(serverSeed string) *Fairness {
	if serverSeed == "" {
		serverSeed = generateServerSeed()
	}
	return &Fairness{serverSeed: serverSeed}
}

func generateServerSeed() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("failed to generate server seed: %v", err))
	}
	return hex.EncodeToString(bytes)
}

// ServerHash is the published commitment to the current server seed.
func (f *Fairness) ServerHash() string {
	hash := sha256.Sum256([]byte(f.serverSeed))
	return hex.EncodeToString(hash[:])
}

// ServerSeed exposes the raw seed. Only hand this out when rotating seeds;
// an active seed lets a player predict layouts.
func (f *Fairness) ServerSeed() string {
	return f.serverSeed
}

// Rotate swaps in a new server seed and returns the old one for publication.
func (f *Fairness) Rotate(newSeed string) string {
	old := f.serverSeed
	if newSeed == "" {
		newSeed = generateServerSeed()
	}
	f.serverSeed = newSeed
	return old
}

// HazardPositions draws count distinct tile indices from [0, boardSize),
// every subset of that size equally likely. The draw is a partial
// Fisher-Yates shuffle fed by the HMAC keystream with rejection sampling, so
// it is both unbiased and reproducible from the seeds.
func (f *Fairness) HazardPositions(clientSeed string, nonce int64, boardSize, count int) []int {
	return DeriveHazardPositions(f.serverSeed, clientSeed, nonce, boardSize, count)
}

// DiceRoll derives a two-decimal roll in [0, 100).
func (f *Fairness) DiceRoll(clientSeed string, nonce int64) float64 {
	return DeriveDiceRoll(f.serverSeed, clientSeed, nonce)
}

// DeriveHazardPositions is the pure form of HazardPositions, usable for
// verification of a finished game against a revealed server seed.
func DeriveHazardPositions(serverSeed, clientSeed string, nonce int64, boardSize, count int) []int {
	stream := newHMACStream(serverSeed, fmt.Sprintf("minefield:%s:%d", clientSeed, nonce))

	indices := make([]int, boardSize)
	for i := range indices {
		indices[i] = i
	}

	for i := 0; i < count; i++ {
		j := i + stream.uniform(boardSize-i)
		indices[i], indices[j] = indices[j], indices[i]
	}

	positions := append([]int(nil), indices[:count]...)
	sort.Ints(positions)
	return positions
}

// DeriveDiceRoll is the pure form of DiceRoll.
func DeriveDiceRoll(serverSeed, clientSeed string, nonce int64) float64 {
	stream := newHMACStream(serverSeed, fmt.Sprintf("dice:%s:%d", clientSeed, nonce))
	return float64(stream.uniform(10000)) / 100
}

// hmacStream yields an unbounded byte stream by chaining
// HMAC-SHA256(key, message:block) blocks.
type hmacStream struct {
	key     []byte
	message string
	block   uint64
	buf     []byte
	off     int
}

func newHMACStream(key, message string) *hmacStream {
	return &hmacStream{key: []byte(key), message: message}
}

func (s *hmacStream) next4() uint32 {
	if s.off+4 > len(s.buf) {
		h := hmac.New(sha256.New, s.key)
		fmt.Fprintf(h, "%s:%d", s.message, s.block)
		s.block++
		s.buf = h.Sum(nil)
		s.off = 0
	}
	v := binary.BigEndian.Uint32(s.buf[s.off:])
	s.off += 4
	return v
}

// uniform returns an unbiased value in [0, n) by rejecting draws from the
// truncated tail of the 32-bit range.
func (s *hmacStream) uniform(n int) int {
	if n <= 1 {
		return 0
	}
	limit := (1 << 32) / uint64(n) * uint64(n)
	for {
		v := uint64(s.next4())
		if v < limit {
			return int(v % uint64(n))
		}
	}
}
