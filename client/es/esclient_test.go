package es

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestConfigFromEnv(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should be disabled without addresses", func(t *testing.T) {
		t.Setenv("ELASTICSEARCH_URL", " , ")
		Expect(Enabled()).To(BeFalse())
		Expect(ConfigFromEnv().Addresses).To(BeEmpty())
	})

	t.Run("should split addresses and read credentials", func(t *testing.T) {
		t.Setenv("ELASTICSEARCH_URL", "http://es-1:9200, http://es-2:9200")
		t.Setenv("ELASTICSEARCH_USERNAME", "docflow")
		t.Setenv("ELASTICSEARCH_PASSWORD", "secret")

		Expect(Enabled()).To(BeTrue())
		cfg := ConfigFromEnv()
		Expect(cfg.Addresses).To(Equal([]string{"http://es-1:9200", "http://es-2:9200"}))
		Expect(cfg.Username).To(Equal("docflow"))
		Expect(cfg.Password).To(Equal("secret"))
		Expect(cfg.MaxRetries).To(Equal(3))
	})
}
