package transport

import (
	"time"

	"evalgo.org/dockhand/internal/credentials"
	"evalgo.org/dockhand/models"
)

// Factory constructs the adapter matching a host's transport kind.
type Factory struct {
	creds          *credentials.Store
	connectTimeout time.Duration
}

// NewFactory creates an adapter factory. connectTimeout bounds SSH dials.
func NewFactory(creds *credentials.Store, connectTimeout time.Duration) *Factory {
	return &Factory{creds: creds, connectTimeout: connectTimeout}
}

// NewAdapter builds an unverified adapter for the host. The caller (the
// connection pool) runs the liveness probe before handing it out.
func (f *Factory) NewAdapter(host *models.Host) (Adapter, error) {
	switch host.Transport {
	case models.TransportDirect:
		return NewDirect(host)

	case models.TransportSSH:
		cred, err := f.creds.Resolve(host.CredentialRef)
		if err != nil {
			return nil, models.WrapError(models.KindHostUnreachable, err,
				"cannot resolve credentials for host %s", host.ID)
		}
		return NewSSH(host, cred, f.connectTimeout)

	default:
		return nil, models.NewError(models.KindHostUnreachable,
			"host %s has unsupported transport kind %q", host.ID, host.Transport)
	}
}
