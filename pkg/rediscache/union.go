package rediscache

import (
	"context"

	"github.com/openimsdk/tools/errs"
	"github.com/redis/go-redis/v9"
)

// unionScript unions the members of the keys that exist and reports the
// keys that do not, in one atomic round trip. Keys holding a non-set value
// (the empty-value sentinel is stored as a plain string by older writers)
// count as present but contribute no members. On a cluster all keys must
// hash to the same slot.
var unionScript = redis.NewScript(`
local existing = {}
local missing = {}
for i = 1, #KEYS do
	local t = redis.call('TYPE', KEYS[i]).ok
	if t == 'set' then
		existing[#existing + 1] = KEYS[i]
	elseif t == 'none' then
		missing[#missing + 1] = KEYS[i]
	end
end
local members = {}
if #existing > 0 then
	members = redis.call('SUNION', unpack(existing))
end
return {members, missing}
`)

// UnionWithMisses returns the union of all cached set members under keys
// plus the list of keys absent from Redis. Existence and union are read in
// the same script, so a concurrent eviction cannot slip a key between the
// two checks.
func UnionWithMisses(ctx context.Context, rdb redis.UniversalClient, keys []string) (members []string, missing []string, err error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}
	res, err := unionScript.Run(ctx, rdb, keys).Result()
	if err != nil {
		return nil, nil, errs.WrapMsg(err, "union script", "keys", keys)
	}
	parts, ok := res.([]any)
	if !ok || len(parts) != 2 {
		return nil, nil, errs.New("unexpected union script reply").Wrap()
	}
	return toStrings(parts[0]), toStrings(parts[1]), nil
}

func toStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
