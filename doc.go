// Package room implements the Room wire protocol: a compact, text-framed
// message format over any reliable, ordered byte stream (a TCP socket, a
// WebSocket binary-message stream, or anything else satisfying the two-method
// Stream contract).
//
// # Wire format
//
// Every message is four fields, each but the last terminated by a single
// blank byte:
//
//	<VERB> SP <CHANNEL> SP <COUNT> SP <CONTENT[COUNT bytes]>
//
// VERB matches [A-Za-z_]+, CHANNEL matches [+-][0-9A-Fa-f]+, and COUNT
// matches [0-9]+ and declares the exact byte length of CONTENT. There is no
// inter-message delimiter: messages are simply concatenated.
//
//	MSG +0 23 UTF8 Text or Binary dat
//	PING +ffffffff 0
//	BCAST -1 4 ABCD
//
// # Quick start
//
//	stream := tcp.Wrap(conn)
//	codec, err := room.NewCodec(stream, room.DefaultStreamOptions())
//	if err != nil {
//	    return err
//	}
//	defer codec.Close()
//
//	svc := room.NewService(room.DefaultServiceOptions(), room.ServiceHandlers{
//	    OnReceive: func(c room.Codec, msg room.Message) {
//	        // msg.Content is positioned at offset 0 and owned by the caller.
//	    },
//	})
//	svc.Start()
//	defer svc.Dispose()
//	svc.Listen(ctx, codec)
//
// # Content buffering
//
// Content at or below StreamOptions.MaxFastBuffering is held in memory;
// larger content spills to a uniquely named temporary file under
// StreamOptions.TempContentFolder, removed when the content is closed.
//
// # Concurrency
//
// A single Codec must not be read from or written to concurrently with
// itself on the same side, but one reader and one writer may run
// concurrently against the same Codec — they touch disjoint staging
// buffers. Service runs one listen loop per attached stream plus one
// shared transmit loop; see the Service doc comment for ordering
// guarantees.
package room
