package transcode

import "io"

// emit writes data to sink through a fresh encoder of codec, or as a single
// write when there is no codec. The sink is not finalized here.
func emit(sink Sink, codec *Codec, data []byte) error {
	if codec == nil {
		_, err := sink.Write(data)
		return err
	}

	// hide Close so the encoder never finalizes the sink
	zw, err := codec.NewWriter(struct{ io.Writer }{sink})
	if err != nil {
		return err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
