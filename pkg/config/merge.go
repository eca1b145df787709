package config

import "dario.cat/mergo"

// mergeOnto merges src onto dst, with non-zero fields in src overriding dst,
// mirroring the teacher's mergo.WithOverride usage in its queue-config merge.
func mergeOnto(dst, src *Config) error {
	return mergo.Merge(dst, src, mergo.WithOverride)
}
