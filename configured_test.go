package habitat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/centraunit/habitat"
	"github.com/centraunit/habitat/mock"
	"github.com/stretchr/testify/suite"
)

type ConfiguredTestSuite struct {
	suite.Suite
	locator *habitat.ServiceLocator
	ctx     context.Context
	owner   *habitat.ServiceDescriptor
}

func (s *ConfiguredTestSuite) SetupTest() {
	s.locator = habitat.NewServiceLocator()
	s.ctx = context.Background()

	_, err := s.locator.Register(habitat.Link(englishImpl).To(greeterContract).ProvidedBy(mock.EnglishCreator).Build())
	s.Require().NoError(err)

	h, err := s.locator.Register(habitat.Link(habitat.ContractOf[*mock.ServerService]()).
		ProvidedBy(func(c *habitat.CreationContext) (any, error) {
			svc := &mock.ServerService{}
			return svc, c.InjectFields(svc)
		}).Build())
	s.Require().NoError(err)
	s.owner = h.Descriptor()
}

func (s *ConfiguredTestSuite) fieldPoint(element string, marker habitat.Marker) habitat.InjectionPoint {
	return habitat.InjectionPoint{
		Kind:      habitat.ElementField,
		Declaring: s.owner.Implementation(),
		Element:   element,
		Marker:    marker,
		Owner:     s.owner,
	}
}

func (s *ConfiguredTestSuite) TestFieldKeyDefaultsToFieldName() {
	s.locator.RegisterBackingBean(s.owner, map[string]any{"host": "example.org"})

	v, err := s.locator.Resolve(s.ctx, s.fieldPoint("host", habitat.Configured{}))
	s.Require().NoError(err)
	s.Equal("example.org", v)
}

func (s *ConfiguredTestSuite) TestExplicitFieldKey() {
	s.locator.RegisterBackingBean(s.owner, map[string]any{"listen-port": 8080})

	v, err := s.locator.Resolve(s.ctx, s.fieldPoint("Port", &habitat.Configured{Key: "listen-port"}))
	s.Require().NoError(err)
	s.Equal(8080, v)
}

func (s *ConfiguredTestSuite) TestMissingPropertyNamesTheField() {
	s.locator.RegisterBackingBean(s.owner, map[string]any{"other": 1})

	_, err := s.locator.Resolve(s.ctx, s.fieldPoint("hostname", habitat.Configured{}))
	var missing *habitat.PropertyNotFoundError
	s.Require().True(errors.As(err, &missing))
	s.Equal("hostname", missing.Key)
	s.Contains(missing.Point, "hostname")
	s.ErrorIs(err, habitat.ErrPropertyNotFound)
}

func (s *ConfiguredTestSuite) TestRemovedBeanIsNotFound() {
	s.locator.RegisterBackingBean(s.owner, map[string]any{"host": "example.org"})
	s.locator.Beans().Remove(s.owner)

	_, ok := s.locator.Beans().Lookup(s.owner)
	s.False(ok)
	_, err := s.locator.Resolve(s.ctx, s.fieldPoint("host", habitat.Configured{}))
	var noBean *habitat.BeanNotFoundError
	s.True(errors.As(err, &noBean))
}

func (s *ConfiguredTestSuite) TestMissingBeanIsFatal() {
	_, err := s.locator.Resolve(s.ctx, s.fieldPoint("host", habitat.Configured{}))
	var noBean *habitat.BeanNotFoundError
	s.Require().True(errors.As(err, &noBean))
	s.Contains(noBean.Point, "field host")
}

func (s *ConfiguredTestSuite) TestParameterRequiresExplicitKey() {
	s.locator.RegisterBackingBean(s.owner, map[string]any{"host": "example.org"})

	for _, kind := range []habitat.ElementKind{habitat.ElementConstructorParameter, habitat.ElementSetterParameter} {
		point := s.fieldPoint("NewServer", habitat.Configured{})
		point.Kind = kind

		_, err := s.locator.Resolve(s.ctx, point)
		var cfgErr *habitat.ConfigurationError
		s.True(errors.As(err, &cfgErr), "kind %s", kind)

		point.Marker = habitat.Configured{Key: "host"}
		v, err := s.locator.Resolve(s.ctx, point)
		s.NoError(err)
		s.Equal("example.org", v)
	}
}

func (s *ConfiguredTestSuite) TestParameterWithoutKeyRejectedAtRegistration() {
	impl := habitat.TypeKey("example.Server")
	_, err := s.locator.Register(habitat.Link(impl).
		Injects(habitat.InjectionPoint{Kind: habitat.ElementConstructorParameter, Element: "NewServer", Marker: habitat.Configured{}}).
		ProvidedBy(habitat.Constant("server")).Build())

	var cfgErr *habitat.ConfigurationError
	s.True(errors.As(err, &cfgErr))
	s.Nil(s.locator.LookupByContract(impl), "registration is all-or-nothing")
}

func (s *ConfiguredTestSuite) TestOtherElementsUseSystemResolver() {
	v, err := s.locator.Resolve(s.ctx, habitat.InjectionPoint{
		Kind:     habitat.ElementOther,
		Contract: greeterContract,
		Marker:   habitat.Configured{Key: "ignored"},
		Owner:    s.owner,
	})
	s.Require().NoError(err)
	s.IsType(mock.EnglishGreeter{}, v)
}

func (s *ConfiguredTestSuite) TestFieldInjectionFromStructBean() {
	s.locator.RegisterBackingBean(s.owner, &mock.ServerBean{Host: "localhost", Port: 9000, Timeout: "250"})

	svc, err := habitat.Get[*mock.ServerService](s.ctx, s.locator, "")
	s.Require().NoError(err)
	s.Equal("localhost", svc.Host)
	s.Equal(9000, svc.Port)
	s.Equal("250", svc.Timeout)
	s.Equal("Hello, you", svc.Greeter.Greet("you"))
}

func (s *ConfiguredTestSuite) TestFieldInjectionFromEnvStyleBean() {
	s.locator.RegisterBackingBean(s.owner, map[string]string{"Host": "db", "port": "5432", "timeout-ms": "10"})

	_, err := habitat.Get[*mock.ServerService](s.ctx, s.locator, "")
	var cfgErr *habitat.ConfigurationError
	s.Require().True(errors.As(err, &cfgErr), "a string cannot fill an int field")
	s.Contains(cfgErr.Point, "Port")
}

func (s *ConfiguredTestSuite) TestSeparateLocatorsHaveSeparateBeans() {
	other := habitat.NewServiceLocator()
	s.locator.RegisterBackingBean(s.owner, map[string]any{"host": "a"})

	_, ok := other.Beans().Lookup(s.owner)
	s.False(ok)

	shared := habitat.NewServiceLocator(habitat.WithBeanTable(s.locator.Beans()))
	bean, ok := shared.Beans().Lookup(s.owner)
	s.True(ok)
	s.Equal(map[string]any{"host": "a"}, bean)
}

func (s *ConfiguredTestSuite) TestCustomPropertyGetter() {
	l := habitat.NewServiceLocator(habitat.WithPropertyGetter(func(key string, bean any) (any, error) {
		return key + "!", nil
	}))
	l.RegisterBackingBean(s.owner, struct{}{})

	v, err := l.Resolve(s.ctx, s.fieldPoint("anything", habitat.Configured{}))
	s.Require().NoError(err)
	s.Equal("anything!", v)
}

func TestConfiguredSuite(t *testing.T) {
	suite.Run(t, new(ConfiguredTestSuite))
}
