package kafka

import (
	"crypto/tls"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// saslMechanism builds the SASL mechanism named by mechanism, or nil when
// mechanism is empty.
func saslMechanism(mechanism, username, password string) (sasl.Mechanism, error) {
	var (
		mech sasl.Mechanism
		err  error
	)
	switch mechanism {
	case "":
		return nil, nil
	case "PLAIN":
		mech = plain.Mechanism{Username: username, Password: password}
	case "SCRAM-SHA-256":
		mech, err = scram.Mechanism(scram.SHA256, username, password)
	case "SCRAM-SHA-512":
		mech, err = scram.Mechanism(scram.SHA512, username, password)
	default:
		return nil, errors.New(errors.ErrCodeValidation, "unsupported SASL mechanism").WithDetail(mechanism)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create SASL mechanism")
	}
	return mech, nil
}

func tlsConfig(enabled bool) *tls.Config {
	if !enabled {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
