package redisstore

import (
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	stockField      = "stock"
	sizeFieldPrefix = "size:"
)

func productKey(id string) string    { return "product:" + id }
func stockKey(id string) string      { return "product:" + id + ":stock" }
func orderKey(id string) string      { return "order:" + id }
func paymentKey(pid string) string   { return "order:payment:" + pid }
func checkoutKey(gwid string) string { return "checkout:" + gwid }

// sizeField names a bucket inside the stock hash. Labels match case-insensitively.
func sizeField(size string) string {
	if size == "" {
		return ""
	}
	return sizeFieldPrefix + strings.ToLower(size)
}

// updateIfScript applies a guarded stock delta to one stock hash.
// KEYS[1] stock hash
// ARGV min stock, predicate bucket field, min pieces, stock delta, delta bucket field, pieces delta
var updateIfScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local stock = tonumber(redis.call('HGET', KEYS[1], 'stock') or '0')
if stock < tonumber(ARGV[1]) then
  return 0
end
local minPieces = tonumber(ARGV[3])
if ARGV[2] ~= '' and minPieces > 0 then
  local have = redis.call('HGET', KEYS[1], ARGV[2])
  if not have or tonumber(have) < minPieces then
    return 0
  end
end
local dStock = tonumber(ARGV[4])
if stock + dStock < 0 then
  return 0
end
local pieces = nil
if ARGV[5] ~= '' then
  local raw = redis.call('HGET', KEYS[1], ARGV[5])
  if raw then
    pieces = tonumber(raw)
    if pieces + tonumber(ARGV[6]) < 0 then
      return 0
    end
  end
end
redis.call('HINCRBY', KEYS[1], 'stock', dStock)
if pieces then
  redis.call('HINCRBY', KEYS[1], ARGV[5], tonumber(ARGV[6]))
end
return 1
`)

// insertOrderScript stores a new order and claims its payment id.
// KEYS[1] order doc, KEYS[2] payment index (optional)
// ARGV order json, order id
var insertOrderScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
if #KEYS > 1 then
  if redis.call('SETNX', KEYS[2], ARGV[2]) == 0 then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

// updateOrderScript replaces an order document while its status is unchanged.
// KEYS[1] order doc
// ARGV expected status, order json
var updateOrderScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local current = cjson.decode(raw)
if current['status'] ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)
