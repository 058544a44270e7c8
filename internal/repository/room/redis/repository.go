package redis

import (
	"github.com/redis/go-redis/v9"
)

const (
	roomPrefix    = "room"
	seqKey        = roomPrefix + ":seq"
	patientPrefix = "patient"
)

type repo struct {
	rc               *redis.Client
	ensureRoomScript *redis.Script
}

func NewRepo(rc *redis.Client) *repo {
	return &repo{
		rc: rc,
		// KEYS: sequence, pair index, patient index. ARGV: room key prefix,
		// therapist id, patient id, created at.
		// The room hash key is built from the new id inside the script and is
		// not declared in KEYS, so this needs a single node deployment.
		ensureRoomScript: redis.NewScript(`
			local existing = redis.call('GET', KEYS[2])
			if existing then
				return {existing, 0}
			end

			local id = tostring(redis.call('INCR', KEYS[1]))
			redis.call('SET', KEYS[2], id)
			redis.call('HSET', ARGV[1] .. id,
				'id', id,
				'therapist_id', ARGV[2],
				'patient_id', ARGV[3],
				'created_at', ARGV[4])
			redis.call('SETNX', KEYS[3], id)
			return {id, 1}
		`),
	}
}
