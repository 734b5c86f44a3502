package server

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzone-dev/zoneserver/internal/protocol"
)

func joinPayload(code string, skill int, name string) []byte {
	buf := make([]byte, 0, 12+len(name))
	buf = append(buf, code...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(skill))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(name)))
	return append(buf, name...)
}

func TestParseJoin(t *testing.T) {
	gt, name, skill, err := parseJoin(joinPayload("spds", 3, "alice"))
	require.NoError(t, err)
	assert.Equal(t, protocol.GameSpades, gt)
	assert.Equal(t, "alice", name)
	assert.Equal(t, 3, skill)

	_, _, _, err = parseJoin(joinPayload("xxxx", 0, "bob"))
	assert.Error(t, err, "unknown game code")

	_, _, _, err = parseJoin(joinPayload("chkr", 0, ""))
	assert.Error(t, err, "empty name")

	long := joinPayload("chkr", 0, strings.Repeat("n", 65))
	_, _, _, err = parseJoin(long)
	assert.Error(t, err, "name too long")

	// Declared length past the end of the payload.
	short := joinPayload("chkr", 0, "carol")
	binary.BigEndian.PutUint32(short[8:], 60)
	_, _, _, err = parseJoin(short)
	assert.Error(t, err)

	_, _, _, err = parseJoin([]byte("bckg"))
	assert.Error(t, err, "truncated payload")
}

func TestParseFields(t *testing.T) {
	fields := parseFields("Game=hrts&Name=dana&Skill=2&Flag")
	assert.Equal(t, "hrts", fields["Game"])
	assert.Equal(t, "dana", fields["Name"])
	assert.Equal(t, "2", fields["Skill"])
	_, ok := fields["Flag"]
	assert.False(t, ok, "pairs without a value are dropped")
}

func TestParsePlay(t *testing.T) {
	msgType, payload, err := parsePlay("match Type=266&Data=0000000c")
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgGamePlayCard, msgType)
	assert.Equal(t, []byte{0, 0, 0, 0x0c}, payload)

	msgType, payload, err = parsePlay("match Type=261&Data=")
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgGameDrawVote, msgType)
	assert.Empty(t, payload)

	_, _, err = parsePlay("Type=266&Data=00")
	assert.Error(t, err, "missing match token")

	_, _, err = parsePlay("match Type=notanumber&Data=00")
	assert.Error(t, err)

	_, _, err = parsePlay("match Type=266&Data=zz")
	assert.Error(t, err, "bad hex payload")
}

func gameStartPayload(seat uint32, names ...string) []byte {
	buf := binary.BigEndian.AppendUint32(nil, seat)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(names)))
	for _, n := range names {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(n)))
		buf = append(buf, n...)
	}
	return buf
}

func TestDecodeGameStart(t *testing.T) {
	seat, names, err := decodeGameStart(gameStartPayload(2, "alice", "bob", "carol", "dana"))
	require.NoError(t, err)
	assert.Equal(t, 2, seat)
	assert.Equal(t, []string{"alice", "bob", "carol", "dana"}, names)

	full := gameStartPayload(0, "alice", "bob")
	for cut := 1; cut < len(full); cut++ {
		_, _, err := decodeGameStart(full[:cut])
		assert.Error(t, err, "truncated at %d", cut)
	}
}

// stateLine splits a rendered STATE message and checks its framing.
func stateLine(t *testing.T, buf []byte) (root string, body string) {
	t.Helper()
	text := string(buf)
	require.True(t, strings.HasSuffix(text, "\r\n"))
	head, rest, ok := strings.Cut(text, "\r\n\r\n")
	require.True(t, ok, "missing header separator")
	body = strings.TrimSuffix(rest, "\r\n")

	var lengthHex string
	_, err := fmt.Sscanf(head, "STATE %s Length: %s", &root, &lengthHex)
	require.NoError(t, err)
	n, err := strconv.ParseInt(lengthHex, 16, 64)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)
	return root, body
}

func TestEncodeModernGameInit(t *testing.T) {
	buf, err := encodeModern(outMsg{
		msgType: protocol.MsgGameStart,
		payload: gameStartPayload(1, "alice", "bob"),
	})
	require.NoError(t, err)
	root, body := stateLine(t, buf)
	assert.Equal(t, "GameInit", root)
	assert.Contains(t, body, "<Seat>1</Seat>")
	assert.Contains(t, body, "<Players><Player>alice</Player><Player>bob</Player></Players>")
}

func TestEncodeModernEventKinds(t *testing.T) {
	buf, err := encodeModern(outMsg{msgType: protocol.MsgGamePlayCard, payload: []byte{0, 0, 0, 5}})
	require.NoError(t, err)
	root, body := stateLine(t, buf)
	assert.Equal(t, "GameEvent", root)
	assert.Contains(t, body, "<Type>266</Type>")
	assert.Contains(t, body, "<Data>00000005</Data>")

	buf, err = encodeModern(outMsg{msgType: protocol.MsgRosterUpdate, payload: []byte{1}})
	require.NoError(t, err)
	root, body = stateLine(t, buf)
	assert.Equal(t, "ManagementEvent", root)
	assert.Contains(t, body, "<Kind>Roster</Kind>")

	// The phase marker produces no output on the modern path.
	buf, err = encodeModern(outMsg{enterGame: true})
	require.NoError(t, err)
	assert.Nil(t, buf)
}

func TestEncodeModernRejectsBadGameStart(t *testing.T) {
	_, err := encodeModern(outMsg{msgType: protocol.MsgGameStart, payload: []byte{0, 0}})
	assert.Error(t, err)
}

func testEntry() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestPlayerSocketOrdersRawAndEncoded(t *testing.T) {
	near, far := net.Pipe()
	sock := newPlayerSocket(near, testEntry(), func(msg outMsg) ([]byte, error) {
		return []byte(fmt.Sprintf("enc:%d;", msg.msgType)), nil
	})
	defer sock.Kick()

	sock.SendRaw([]byte("raw;"))
	sock.Send(7, nil)
	sock.Send(9, nil)

	far.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	var got string
	for !strings.Contains(got, "enc:9;") {
		n, err := far.Read(buf)
		require.NoError(t, err)
		got += string(buf[:n])
	}
	assert.Equal(t, "raw;enc:7;enc:9;", got)
}

func TestPlayerSocketKickUnblocksPeer(t *testing.T) {
	near, far := net.Pipe()
	sock := newPlayerSocket(near, testEntry(), func(outMsg) ([]byte, error) {
		return []byte("x"), nil
	})

	sock.Kick()
	select {
	case <-sock.Done():
	default:
		t.Fatal("Done not closed after Kick")
	}

	far.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := far.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	// Sends after Kick are discarded without blocking.
	sock.Send(1, nil)
	sock.Kick()
}

func TestPlayerSocketFullQueueKicks(t *testing.T) {
	near, far := net.Pipe()
	defer far.Close()
	sock := newPlayerSocket(near, testEntry(), func(outMsg) ([]byte, error) {
		return []byte("x"), nil
	})

	// Nobody reads from far, so the writer blocks on the first message and
	// the queue eventually overflows.
	for i := 0; i < outboundDepth+2; i++ {
		sock.Send(uint32(i), nil)
	}
	select {
	case <-sock.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("socket not kicked after queue overflow")
	}
}
